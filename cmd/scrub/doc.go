// Command scrub bulk-downloads time-series metrics from a metered API as
// CSV files.
//
// # Usage
//
//	scrub [global options] <command> [options]
//
// Commands:
//
//	endpoints  Fetch the endpoint catalog, filter it and store endpoints.json
//	scrape     Download every endpoint and asset in endpoints.json
//
// Global options:
//
//	-c, --config FILE      YAML or TOML configuration file
//	-g, --apikey KEY       API key (env GLASSNODE_API_KEY)
//	-o, --outdir DIR|URL   output directory or bucket URL (default ./data)
//	    --log-file FILE    append logs to FILE
//	    --log-level LEVEL  debug, info, warn or error
//	    --log-format FMT   text or json
//
// # Examples
//
//	scrub endpoints -a BTC -a ETH -t 1 -p '/v1/metrics/market'
//	scrub scrape --workers 18 --progress
//	scrub -o s3://my-bucket/metrics?region=eu-west-1 scrape
//
// # Exit Codes
//
//	0  success, including runs where individual jobs failed
//	1  general error or interrupted run
//	2  invalid arguments or configuration
//	3  the API could not be reached or the catalog fetch failed
//	5  the output location could not be read or written
//	6  another scrub run holds the output directory
package main
