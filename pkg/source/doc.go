// Package source fetches the desired subnet bindings from Postgres or a JSON file.
package source
