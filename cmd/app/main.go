// app is the command-line interface to the invoicing engine.
package main

func main() {
	Execute()
}
