package main

import "github.com/varalys/auditkit/cmd/auditkit"

func main() { auditkit.Execute() }
