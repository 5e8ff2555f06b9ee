// Package main provides deskctl, a small command line client for the runner API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/deskrunner/internal/domain"
)

const usage = `usage: deskctl [-addr URL] <command> [args]

commands:
  assess <plan.json>            classify a plan without running it
  run [-async] <plan.json>      create and start a run
  get <run_id>                  show a run
  continue <run_id>             resume a run after approval
  stop <run_id>                 request a stop
  approvals                     list pending approvals
  approve [-resume] <id>        approve a pending step
  reject [-reason R] <id>       reject a pending step
  kill-switch [on|off]          show or change the kill switch
  follow <run_id>               stream run events
`

// Client talks to the runner HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the API at base.
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Do sends body as JSON and returns the raw response body. Non-2xx responses
// become errors carrying the server's error code.
func (c *Client) Do(method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s (%d): %s", apiErr.Error, resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return data, nil
}

// Follow prints every event of runID until the server closes the stream.
func (c *Client) Follow(runID string, interrupt <-chan os.Signal) error {
	addr, err := streamURL(c.base, runID)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					err = nil
				}
				done <- err
				return
			}
			var ev domain.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}
			fmt.Println(formatEvent(ev))
		}
	}()

	select {
	case err := <-done:
		return err
	case <-interrupt:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	}
}

// streamURL turns the API base into the websocket address of a run stream.
func streamURL(base, runID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse addr: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/runs/" + url.PathEscape(runID) + "/stream"
	return u.String(), nil
}

func formatEvent(ev domain.Event) string {
	ts := time.UnixMilli(ev.Ts).Format("15:04:05.000")
	if len(ev.Payload) == 0 || string(ev.Payload) == "null" {
		return fmt.Sprintf("%s %s", ts, ev.Type)
	}
	return fmt.Sprintf("%s %s %s", ts, ev.Type, string(ev.Payload))
}

func readPlan(path string) (domain.Plan, error) {
	var plan domain.Plan
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return plan, fmt.Errorf("read plan: %w", err)
	}
	if err := json.Unmarshal(data, &plan); err != nil {
		return plan, fmt.Errorf("decode plan: %w", err)
	}
	return plan, nil
}

func printJSON(data json.RawMessage) {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(out.String())
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "runner API address")
	workspace := flag.String("workspace", "", "workspace id for trust decisions")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	log.SetFlags(log.Ltime)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	client := NewClient(*addr)
	if err := dispatch(client, *workspace, args[0], args[1:]); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func dispatch(client *Client, workspace, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	async := fs.Bool("async", false, "return once the run has started")
	resume := fs.Bool("resume", false, "continue the run after approving")
	reason := fs.String("reason", "", "decision reason")
	by := fs.String("by", os.Getenv("USER"), "who decided")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()

	arg := func() (string, error) {
		if len(rest) == 0 {
			return "", fmt.Errorf("missing argument")
		}
		return rest[0], nil
	}

	var (
		out json.RawMessage
		err error
	)
	switch cmd {
	case "assess":
		path, aerr := arg()
		if aerr != nil {
			return aerr
		}
		plan, perr := readPlan(path)
		if perr != nil {
			return perr
		}
		out, err = client.Do(http.MethodPost, "/v1/plans/assess", domain.AssessRequest{Plan: plan, WorkspaceID: workspace})

	case "run":
		path, aerr := arg()
		if aerr != nil {
			return aerr
		}
		plan, perr := readPlan(path)
		if perr != nil {
			return perr
		}
		out, err = client.Do(http.MethodPost, "/v1/runs", domain.CreateRunRequest{
			Plan:        plan,
			WorkspaceID: workspace,
			UserID:      *by,
			Async:       *async,
		})

	case "get", "continue", "stop":
		id, aerr := arg()
		if aerr != nil {
			return aerr
		}
		switch cmd {
		case "get":
			out, err = client.Do(http.MethodGet, "/v1/runs/"+url.PathEscape(id), nil)
		case "continue":
			path := "/v1/runs/" + url.PathEscape(id) + "/continue"
			if *async {
				path += "?async=true"
			}
			out, err = client.Do(http.MethodPost, path, nil)
		default:
			out, err = client.Do(http.MethodPost, "/v1/runs/"+url.PathEscape(id)+"/stop", nil)
		}

	case "approvals":
		out, err = client.Do(http.MethodGet, "/v1/approvals?status="+string(domain.ApprovalStatusPending), nil)

	case "approve", "reject":
		id, aerr := arg()
		if aerr != nil {
			return aerr
		}
		out, err = client.Do(http.MethodPost, "/v1/approvals/"+url.PathEscape(id)+"/decide", domain.ApprovalDecisionRequest{
			Decision:  cmd,
			Reason:    *reason,
			DecidedBy: *by,
			Resume:    cmd == "approve" && *resume,
		})

	case "kill-switch":
		if len(rest) == 0 {
			out, err = client.Do(http.MethodGet, "/v1/kill-switch", nil)
			break
		}
		var enabled bool
		switch rest[0] {
		case "on":
			enabled = true
		case "off":
		default:
			return fmt.Errorf("expected on or off, got %q", rest[0])
		}
		out, err = client.Do(http.MethodPost, "/v1/kill-switch", domain.KillSwitchRequest{
			Enabled:     enabled,
			Reason:      *reason,
			ActivatedBy: *by,
		})

	case "follow":
		id, aerr := arg()
		if aerr != nil {
			return aerr
		}
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		return client.Follow(id, interrupt)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		return err
	}
	printJSON(out)
	return nil
}
