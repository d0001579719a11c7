package main

import "github.com/lufespi/gestor-academico/cmd/thesisboard/cmd"

func main() {
	cmd.Execute()
}
