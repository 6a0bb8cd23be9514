package main

import (
	"github.com/joho/godotenv"

	"github.com/mohammadjaf013/findlanqbot/internal/commands"
)

func main() {
	_ = godotenv.Load()
	commands.Execute()
}
