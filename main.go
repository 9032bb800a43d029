// Command corpusforge runs the distributed document-processing pipeline:
// a Postgres-backed work queue, content-source fetchers, parsers, domain
// relationship detection, and embeddings, coordinated across any number of
// worker processes.
package main

import "corpusforge.dev/cli"

func main() {
	cli.Execute()
}
