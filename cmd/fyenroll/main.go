// Command fyenroll runs share-holder enrollment for threshold keys.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
