package main

import (
	"github.com/Ritesh-sh/Blog-AI/cmd/handlers"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
