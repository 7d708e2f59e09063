package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"

	"elephant-logger/utils"
)

func main() {
	err := utils.CreateFolder("data")
	if err != nil {
		logger := utils.GetLogger()
		err := xerrors.New(err)
		ctx := context.Background()
		logger.ErrorContext(ctx, "Failed to create data dir.", slog.Any("error", err))
	}

	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' or 'ports' subcommand")
		os.Exit(1)
	}
	_ = godotenv.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", "http", "Protocol to use (http or https)")
		port := serveCmd.String("p", "5000", "Port to use")
		serialPort := serveCmd.String("serial", "auto", "Serial port of the sensor ('auto' to scan, 'tcp:host:port' for a bridge)")
		serveCmd.Parse(os.Args[2:])
		serve(*protocol, *port, *serialPort)
	case "ports":
		listPorts()
	default:
		fmt.Println("Expected 'serve' or 'ports' subcommand")
		os.Exit(1)
	}
}
