// Package cmd contains the admin app.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var url string

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the gateway.")
}

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative queries against a running gateway",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// get performs a GET against the gateway and pretty prints the JSON response.
func get(path string) error {
	resp, err := http.Get(url + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return print(resp.Body)
}

func print(r io.Reader) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	var pretty any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}

	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))
	return nil
}
