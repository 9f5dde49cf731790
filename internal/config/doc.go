// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation:
//
//	socket:
//	  url: //chat.example.com/ws
//	  page_scheme: https
//	  format: json
//	  reconnection:
//	    enabled: true
//	    attempts: 5
//	    delay: 2s
//	journal:
//	  enabled: true
//	  database:
//	    host: localhost
//	    name: sockets
//	    user: journal
//	    password: ${JOURNAL_DB_PASSWORD}
package config
