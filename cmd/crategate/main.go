// Crategate - dependency-policy audit gate.
// Scan every profile. Classify. One verdict.
package main

func main() {
	Execute()
}
