// Public domain.

package main

import "phasefit/internal/pfprog"

func main() {
	pfprog.Main()
}
