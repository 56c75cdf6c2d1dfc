// Command vaultkey prints a freshly generated vault encryption key in the
// hex form expected by VAULTDESK_ENCRYPTION_KEY.
package main

import (
	"fmt"
	"os"

	"github.com/ericfisherdev/vaultdesk/internal/envelope"
)

func main() {
	key, err := envelope.GenerateKeyHex()
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate key:", err)
		os.Exit(1)
	}
	fmt.Println(key)
}
