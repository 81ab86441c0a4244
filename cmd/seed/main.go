// Command seed fills a running InfinitiFlow server with demo accounts and
// generated content through the public API. The first account uses -email and
// -pass; the rest get fake addresses.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	baseURL = flag.String("url", env("API_BASE_URL", "http://localhost:8080"), "Server base URL")
	email   = flag.String("email", env("EMAIL", "demo@example.com"), "Account e-mail")
	pass    = flag.String("pass", env("PASSWORD", "Password123"), "Account password")
	plan    = flag.String("plan", env("PLAN", "premium"), "Plan to switch the account to")
	users   = flag.Int("users", envInt("USERS", 1), "How many accounts to seed")
	count   = flag.Int("n", envInt("COUNT", 50), "Content items to create per account")
)

var errQuota = errors.New("monthly quota reached")

var contentTypes = []string{"blog", "social", "email", "ad", "product"}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

type client struct {
	http  *http.Client
	token string
}

func (c *client) send(method, path string, body any) (*http.Response, []byte, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, *baseURL+path, r)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp, data, err
}

func main() {
	flag.Parse()
	gofakeit.Seed(time.Now().UnixNano())

	fmt.Printf("Seeding %d account(s) (plan=%s, content=%d each) on %s\n", *users, *plan, *count, *baseURL)

	httpClient := &http.Client{Timeout: 10 * time.Second}

	for i := 0; i < *users; i++ {
		addr := *email
		if i > 0 {
			addr = gofakeit.Email()
		}
		fmt.Printf("[%d/%d] %s\n", i+1, *users, addr)

		c := &client{http: httpClient}
		if err := c.ensureUser(addr); err != nil {
			fatal(err)
		}
		if err := c.changePlan(*plan); err != nil {
			fatal(err)
		}

		created, err := c.createContent(*count)
		switch {
		case errors.Is(err, errQuota):
			fmt.Printf("• stopped after %d items: %v\n", created, err)
		case err != nil:
			fatal(err)
		}
	}

	fmt.Println("✔ done")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "FATAL:", err)
	os.Exit(1)
}

// ensureUser registers addr, or logs in when it already exists.
func (c *client) ensureUser(addr string) error {
	register := map[string]string{
		"firstName": gofakeit.FirstName(),
		"lastName":  gofakeit.LastName(),
		"email":     addr,
		"password":  *pass,
		"company":   gofakeit.Company(),
	}

	resp, body, err := c.send(http.MethodPost, "/api/auth/register", register)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusCreated {
		fmt.Println("• registered new user")
		return c.readToken(body)
	}
	if resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("register failed (%d): %s", resp.StatusCode, body)
	}

	login := map[string]string{"email": addr, "password": *pass}
	resp, body, err = c.send(http.MethodPost, "/api/auth/login", login)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed (%d): %s", resp.StatusCode, body)
	}
	fmt.Println("• logged in existing user")
	return c.readToken(body)
}

func (c *client) readToken(body []byte) error {
	var r struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return err
	}
	if r.Token == "" {
		return errors.New("no token in session response")
	}
	c.token = r.Token
	return nil
}

func (c *client) changePlan(p string) error {
	resp, body, err := c.send(http.MethodPatch, "/api/subscription/plan", map[string]string{"plan": p})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("change plan failed (%d): %s", resp.StatusCode, body)
	}
	fmt.Printf("• switched to %s\n", p)
	return nil
}

func (c *client) createContent(total int) (int, error) {
	for i := 1; i <= total; i++ {
		item := map[string]string{
			"title":  gofakeit.Sentence(4),
			"type":   contentTypes[gofakeit.Number(0, len(contentTypes)-1)],
			"prompt": gofakeit.Paragraph(1, 2, 20, " "),
		}

		resp, body, err := c.send(http.MethodPost, "/api/content", item)
		if err != nil {
			return i - 1, err
		}
		switch resp.StatusCode {
		case http.StatusCreated:
		case http.StatusForbidden:
			return i - 1, errQuota
		case http.StatusTooManyRequests:
			wait := resp.Header.Get("Retry-After")
			return i - 1, fmt.Errorf("rate limited, retry after %ss", wait)
		default:
			return i - 1, fmt.Errorf("create content %d failed (%d): %s", i, resp.StatusCode, body)
		}

		if i%10 == 0 || i == total {
			fmt.Printf("  … %d/%d\n", i, total)
		}
	}
	return total, nil
}
