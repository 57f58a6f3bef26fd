// Command cellctl is a small administrative client over an entrycell
// registry: put, get, remove, and inspect keys backed by a file store and
// a SQLite-backed swap tier.
package main

import "github.com/gridkv/entrycell/cellctl"

func main() {
	cellctl.Execute()
}
