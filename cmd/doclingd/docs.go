package main

// General API documentation for swaggo: swag init -g cmd/doclingd/docs.go
//
// @title           doclingd API
// @version         1.0
// @description     HTTP API for local Granite Docling page transcription.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
