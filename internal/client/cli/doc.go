// Package cli is the interactive trackkeeper command-line client.
//
// App wires configuration, the local session database and the gRPC client,
// then runs a read-eval-print loop until the user exits. Commands:
//
//	register, login, refresh, whoami, logout, logout-all,
//	forgot, reset, passwd, help, exit
//
// Secrets are read from the terminal without echo.
package cli
