package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/openclose/ledger/pkg/client"
)

const defaultBaseURL = "http://localhost:8080"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "check":
		err = runCheck(os.Args[2:])
	case "permissions":
		err = runPermissions(os.Args[2:])
	case "policies":
		err = runPolicies(os.Args[2:])
	case "policy-create":
		err = runPolicyCreate(os.Args[2:])
	case "policy-deactivate":
		err = runPolicyDeactivate(os.Args[2:])
	case "denials":
		err = runDenials(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: admincli <command> [flags]

Commands:
  check              Check whether the caller may perform an action
  permissions        List the caller's role-granted actions
  policies           List the organization's policies
  policy-create      Create a policy from a JSON document
  policy-deactivate  Deactivate a policy by id
  denials            List denial audit entries

Common flags:
  -base-url  API base URL (default `+defaultBaseURL+`)
  -org       Organization id (X-Org-ID header)
  -token     Bearer token, or set LEDGER_TOKEN`)
}

func addCommonFlags(fs *flag.FlagSet) (baseURL, org, token *string) {
	baseURL = fs.String("base-url", defaultBaseURL, "API base URL")
	org = fs.String("org", "", "Organization id")
	token = fs.String("token", os.Getenv("LEDGER_TOKEN"), "Bearer token")
	return
}

func newClient(baseURL, org, token string) *client.Client {
	c := client.New(client.Config{BaseURL: baseURL, OrgID: org})
	c.SetToken(token)
	return c
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	baseURL, org, token := addCommonFlags(fs)
	action := fs.String("action", "", "Action to check, e.g. journal_entry:post")
	resourceJSON := fs.String("resource", "", "Optional resource JSON, e.g. {\"type\":\"journal_entry\"}")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *action == "" {
		return fmt.Errorf("action is required")
	}

	var resource map[string]any
	if *resourceJSON != "" {
		if err := json.Unmarshal([]byte(*resourceJSON), &resource); err != nil {
			return fmt.Errorf("invalid resource JSON: %w", err)
		}
	}

	c := newClient(*baseURL, *org, *token)
	allowed, reason, err := c.CheckPermission(context.Background(), *action, resource)
	if err != nil {
		return err
	}
	if allowed {
		fmt.Println("ALLOW")
	} else {
		fmt.Printf("DENY: %s\n", reason)
	}
	return nil
}

func runPermissions(args []string) error {
	fs := flag.NewFlagSet("permissions", flag.ExitOnError)
	baseURL, org, token := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := newClient(*baseURL, *org, *token)
	perms, err := c.EffectivePermissions(context.Background())
	if err != nil {
		return err
	}
	for _, p := range perms {
		fmt.Println(p)
	}
	return nil
}

func runPolicies(args []string) error {
	fs := flag.NewFlagSet("policies", flag.ExitOnError)
	baseURL, org, token := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := newClient(*baseURL, *org, *token)
	policies, err := c.ListPolicies(context.Background())
	if err != nil {
		return err
	}
	if len(policies) == 0 {
		fmt.Println("No policies found")
		return nil
	}
	for _, p := range policies {
		state := "active"
		if !p.IsActive {
			state = "inactive"
		}
		fmt.Printf("- %s  %s  effect=%s priority=%d [%s]\n", p.ID, p.Name, p.Effect, p.Priority, state)
	}
	return nil
}

func runPolicyCreate(args []string) error {
	fs := flag.NewFlagSet("policy-create", flag.ExitOnError)
	baseURL, org, token := addCommonFlags(fs)
	file := fs.String("file", "", "Path to a policy JSON document")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid policy JSON: %w", err)
	}

	c := newClient(*baseURL, *org, *token)
	id, err := c.CreatePolicy(context.Background(), doc)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runPolicyDeactivate(args []string) error {
	fs := flag.NewFlagSet("policy-deactivate", flag.ExitOnError)
	baseURL, org, token := addCommonFlags(fs)
	id := fs.String("id", "", "Policy id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("id is required")
	}

	c := newClient(*baseURL, *org, *token)
	if err := c.DeactivatePolicy(context.Background(), *id); err != nil {
		return err
	}
	fmt.Println("deactivated")
	return nil
}

func runDenials(args []string) error {
	fs := flag.NewFlagSet("denials", flag.ExitOnError)
	baseURL, org, token := addCommonFlags(fs)
	userID := fs.String("user", "", "Filter by user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := newClient(*baseURL, *org, *token)
	denials, err := c.ListDenials(context.Background(), *userID)
	if err != nil {
		return err
	}
	if len(denials) == 0 {
		fmt.Println("No denials found")
		return nil
	}
	for _, d := range denials {
		fmt.Printf("- %s  user=%s action=%s  %s\n    %s\n",
			d.CreatedAt.Format("2006-01-02 15:04:05"), d.UserID, d.Action, d.ID, d.Reason)
	}
	return nil
}
