package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"smartLink/pkg/utils"
)

// Prints the bcrypt hash to put in ADMIN_PASSWORD_HASH. The password is read
// from the first line of stdin.
func main() {
	hash, err := hashFromInput(os.Stdin)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}
	fmt.Println(hash)
}

func hashFromInput(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return utils.HashPassword(password)
}
