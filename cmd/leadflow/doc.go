// Command leadflow runs the lead stage workflow service.
//
//	leadflow serve   -c config/config.yaml
//	leadflow migrate -c config/config.yaml
//	leadflow stages  --json
package main
