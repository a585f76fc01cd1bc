// Command eventedge-cli talks to a running engine: it scores an event file,
// fetches stored decisions and inspects the active model.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	xhttp "EventEdge/pkg/http"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "engine base URL")
	lang := flag.String("lang", "", "note language (en, vi)")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: eventedge-cli [flags] analyze <file|-> | get <eventId> | rescore <eventId> | model\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	opts, err := request(strings.TrimRight(*addr, "/"), flag.Args(), os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if *lang != "" {
		opts.QueryParams = map[string][]string{"lang": {*lang}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var out json.RawMessage
	if err := xhttp.NewClient(xhttp.WithTimeout(*timeout), xhttp.WithRetries(2, 250*time.Millisecond), xhttp.WithUserAgent("eventedge-cli")).SendAndParse(ctx, opts, &out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := printJSON(os.Stdout, out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func request(base string, args []string, stdin io.Reader) (*xhttp.RequestOptions, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing command")
	}
	switch args[0] {
	case "analyze":
		if len(args) != 2 {
			return nil, fmt.Errorf("analyze needs a file argument")
		}
		body, err := readInput(args[1], stdin)
		if err != nil {
			return nil, err
		}
		return &xhttp.RequestOptions{Method: http.MethodPost, URL: base + "/api/decisions/analyze", Body: body}, nil
	case "get", "rescore":
		if len(args) != 2 || args[1] == "" {
			return nil, fmt.Errorf("%s needs an event id", args[0])
		}
		opts := &xhttp.RequestOptions{Method: http.MethodGet, URL: base + "/api/decisions/" + args[1]}
		if args[0] == "rescore" {
			opts.Method = http.MethodPost
			opts.URL += "/rescore"
		}
		return opts, nil
	case "model":
		return &xhttp.RequestOptions{Method: http.MethodGet, URL: base + "/api/model"}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
}

func readInput(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
