package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           pixeld API
// @version         1.0
// @description     HTTP API for local diffusion model management and image generation.
//
// @contact.name   pixeld maintainers
// @contact.url    https://github.com/your-org/pixeld
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
