// Command dentaldir manages AI regeneration of dental directory landing
// pages and serves the regeneration function endpoint.
//
// Commands:
//
//	serve            run the HTTP API and the stale job sweeper
//	job run          regenerate a batch of pages synchronously
//	job list|show    inspect jobs and their counters
//	job items        list per-page outcomes of a job
//	job sweep        fail running jobs that stopped making progress
//	job watch        follow a job on a running server until it finishes
//	page import      load pages from a JSON file
//	page history     list content versions of a page
//	page rollback    restore the content a version replaced
//	search           rank locations, services or insurers for a query
//	config init      write a sample configuration
//	config validate  load and validate the configuration (--check-llm pings the AI endpoint)
//
// Read commands accept --json for machine-readable output.
package main
