package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/thinkchatd/docs.go -o internal/httpapi/docs`.
//
// @title           thinkchat API
// @version         1.0
// @description     Command and event API for a local reasoning-chat worker.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
