package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tjfontaine/movegate/internal/auth"
)

func main() {
	cost := flag.Int("cost", auth.DefaultCost, "bcrypt cost")
	flag.Parse()

	if err := auth.ValidateCost(*cost); err != nil {
		fmt.Fprintf(os.Stderr, "hashpw: %v\n", err)
		os.Exit(2)
	}

	password := flag.Arg(0)
	if password == "" || password == "-" {
		// Read from stdin so the password stays out of shell history
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Println("Usage: hashpw [-cost N] <password>")
			fmt.Println("       echo <password> | hashpw -")
			fmt.Println("Generates a bcrypt digest for auth.admin_password_hash in config.yaml")
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	digest, err := auth.NewPasswordHasher(*cost).Hash(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpw: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("bcrypt digest: %s\n", digest)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("auth:\n")
	fmt.Printf("  admin_email: \"admin@example.com\"\n")
	fmt.Printf("  admin_password_hash: \"%s\"\n", digest)
}
