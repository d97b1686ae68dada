package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/marmos91/byteserve/pkg/config"
)

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/byteserve/config.yaml)")
	force := fs.Bool("force", false, "Force overwrite existing config file")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	var configPath string
	var err error
	if *configFile != "" {
		configPath = *configFile
		err = config.InitConfigToPath(*configFile, *force)
	} else {
		configPath, err = config.InitConfig(*force)
	}
	if err != nil {
		log.Fatalf("failed to initialize config: %v", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: byteserve start")
	fmt.Printf("  3. Or specify custom config: byteserve start --config %s\n", configPath)
	fmt.Println("\nUse byteservectl to create the first user and bucket:")
	fmt.Println("  byteservectl user add admin --admin")
	fmt.Println("  byteservectl bucket add mybucket --owner admin")
}
