package main

import (
	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/transport"
	"context"
	"flag"
	"fmt"
	"io"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	DirectoryAddr string        `envconfig:"RELAY_DIRECTORY_ADDR" default:"127.0.0.1:8000"`
	Name          string        `envconfig:"RELAY_USER" default:"relayctl"`
	Timeout       time.Duration `envconfig:"RELAY_TIMEOUT" default:"1s"`
	// RELAY_COLOURS enables colorized output
	Colours bool `envconfig:"RELAY_COLOURS" default:"true"`
}

const usage = `usage: relayctl [-name user] <command> [args]
  list                      groups and their ports
  create <group>            create a group, you become its moderator
  delete <group>            delete a group you moderate
  join <group>              port of a group
  fuse <dest> <source>      merge source into dest
  connect                   book your name on the directory
  say <port> <text>         send a chat line
  cmd <port> <line>         run a group command and print the answers
  listen <port>             register as a display and print the group until Ctrl+C`

func main() {
	code, err := run(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string, out io.Writer) (int, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	fs := flag.NewFlagSet("relayctl", flag.ContinueOnError)
	name := fs.String("name", cfg.Name, "User name sent as Sender")
	if err := fs.Parse(args); err != nil {
		return exitConfig, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return exitConfig, fmt.Errorf("%s", usage)
	}

	directory, err := netip.ParseAddrPort(cfg.DirectoryAddr)
	if err != nil {
		return exitConfig, fmt.Errorf("invalid RELAY_DIRECTORY_ADDR %q: %w", cfg.DirectoryAddr, err)
	}
	c, err := client.Dial(directory.Addr().String(), directory, *name, cfg.Timeout)
	if err != nil {
		return exitRuntime, err
	}
	defer c.Close()

	p := printer{out: out, colours: cfg.Colours}
	if err := execute(c, p, rest[0], rest[1:]); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}

func execute(c *client.Client, p printer, verb string, args []string) error {
	switch verb {
	case "list":
		groups, err := c.List()
		if err != nil {
			return err
		}
		p.groups(groups)
	case "create", "join":
		if len(args) != 1 {
			return fmt.Errorf("usage: relayctl %s <group>", verb)
		}
		create := c.Create
		if verb == "join" {
			create = c.Join
		}
		port, err := create(args[0])
		if err != nil {
			return err
		}
		p.ok(fmt.Sprintf("%s on port %d", args[0], port))
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: relayctl delete <group>")
		}
		if err := c.Delete(args[0]); err != nil {
			return err
		}
		p.ok(args[0] + " deleted")
	case "fuse":
		if len(args) != 2 {
			return fmt.Errorf("usage: relayctl fuse <dest> <source>")
		}
		if err := c.Fuse(args[0], args[1]); err != nil {
			return err
		}
		p.ok(fmt.Sprintf("%s merged into %s", args[1], args[0]))
	case "connect":
		answer, err := c.Connect()
		if err != nil {
			return err
		}
		p.ok(answer)
	case "say":
		port, text, err := portAndText(verb, args)
		if err != nil {
			return err
		}
		return c.Say(port, text)
	case "cmd":
		port, line, err := portAndText(verb, args)
		if err != nil {
			return err
		}
		answers, err := c.Command(port, line)
		if err != nil {
			return err
		}
		for _, m := range answers {
			p.message(m)
		}
	case "listen":
		port, _, err := portAndText(verb, append(args, ""))
		if err != nil {
			return err
		}
		return listen(c, p, port)
	default:
		return fmt.Errorf("unknown command %q\n%s", verb, usage)
	}
	return nil
}

// listen prints the group as a display would, until the group ends or Ctrl+C.
func listen(c *client.Client, p printer, port int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	answer, err := c.Register(port)
	if err != nil {
		return err
	}
	p.message(answer)
	for ctx.Err() == nil {
		m, err := c.Receive(250 * time.Millisecond)
		if transport.IsTimeout(err) {
			continue
		}
		if err != nil {
			return err
		}
		p.message(m)
		if m.Order == domain.OrderEnd || m.Order == domain.OrderBan {
			return nil
		}
	}
	return nil
}

func portAndText(verb string, args []string) (int, string, error) {
	if len(args) < 2 {
		return 0, "", fmt.Errorf("usage: relayctl %s <port> <text>", verb)
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", fmt.Errorf("invalid port %q", args[0])
	}
	return port, strings.Join(args[1:], " "), nil
}

type printer struct {
	out     io.Writer
	colours bool
}

func (p printer) ok(text string) {
	if p.colours {
		text = color.FgGreen.Render(text)
	}
	fmt.Fprintln(p.out, text)
}

func (p printer) message(m domain.Message) {
	line := fmt.Sprintf("%s %s: %s", m.Order, m.Sender, m.Text)
	if p.colours {
		switch m.Order {
		case domain.OrderError, domain.OrderBan, domain.OrderEnd:
			line = color.FgRed.Render(line)
		case domain.OrderRedirect:
			line = color.FgYellow.Render(line)
		case domain.OrderResponse, domain.OrderAck:
			line = color.FgCyan.Render(line)
		}
	}
	fmt.Fprintln(p.out, line)
}

func (p printer) groups(groups []client.Group) {
	table := tablewriter.NewWriter(p.out)
	table.SetHeader([]string{"Group", "Port"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("\t")
	for _, g := range groups {
		table.Append([]string{g.Name, strconv.Itoa(g.Port)})
	}
	table.Render()
	if len(groups) == 0 {
		p.ok("no group")
	}
}
