package girderhttp

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
	"github.com/sir_venger/girder_uploader/pkg/httperrors"
)

// anonymousID — пользователь, от имени которого работает сервер без настроенных токенов.
var anonymousID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("girder-stub-anonymous")).String()

type user struct {
	ID    string
	Login string
}

type userKey struct{}

// usersFromTokens строит детерминированных пользователей: один токен — один пользователь.
func usersFromTokens(tokens []string) map[string]user {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)

	users := make(map[string]user, len(sorted))
	for i, tok := range sorted {
		if tok == "" {
			continue
		}
		users[tok] = user{
			ID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(tok)).String(),
			Login: fmt.Sprintf("user%d", i+1),
		}
	}
	return users
}

// identify кладёт в контекст пользователя по заголовку Girder-Token, если он известен.
func (a *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			u  user
			ok bool
		)
		if len(a.users) == 0 {
			u, ok = user{ID: anonymousID, Login: "anonymous"}, true
		} else {
			u, ok = a.users[r.Header.Get(girderproto.HeaderToken)]
		}
		if ok {
			r = r.WithContext(context.WithValue(r.Context(), userKey{}, u))
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser отвечает 401, если identify не нашёл пользователя.
func (a *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userFrom(r.Context()); !ok {
			httperrors.Write(w, fmt.Errorf("%w: you must be logged in", models.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(ctx context.Context) (user, bool) {
	u, ok := ctx.Value(userKey{}).(user)
	return u, ok
}

// currentUser отдаёт владельца токена или null.
func (a *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	u, ok := userFrom(r.Context())
	if !ok {
		httperrors.WriteJSON(w, http.StatusOK, nil)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, girderproto.UserResponse{
		ID:    u.ID,
		Login: u.Login,
		Email: u.Login + "@localhost",
	})
}
