// Package girderhttp реализует локальный сервер upload API, совместимый по протоколу с Girder,
// поверх каталога на диске. Основные эндпоинты:
//   - POST /upload — создаёт слот загрузки (для пустого файла может сразу вернуть file).
//   - POST /upload/chunk?uploadId&offset — принимает кусок, offset обязан совпадать с принятым.
//   - GET /upload/offset?uploadId — отдаёт подтверждённый offset.
//   - GET /file/{id} и GET /file/{id}/download — метаданные и содержимое готового файла.
//   - DELETE /item/{id} — удаляет item вместе с файлами и незавершёнными загрузками.
//   - GET /user/me — владелец токена или null.
//   - POST /admin/gc — ручной сбор устаревших загрузок.
//   - GET /health, GET /metrics — служебные.
package girderhttp
