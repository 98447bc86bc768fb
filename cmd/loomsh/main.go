// loomsh is an interactive shell for poking at actor wiring: spawn
// calculator server actors, connect client sessions, send requests and
// watch the responses come back.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/abiosoft/ishell/v2"
	"github.com/loomkit/loom/actors"
	"github.com/loomkit/loom/config"
	"github.com/loomkit/loom/types"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

const requestTimeout = 2 * time.Second

var (
	programLevel = new(slog.LevelVar) // Info by default

	serverConfig config.ServerConfig

	sessions map[string]*session

	group    *errgroup.Group
	groupCtx context.Context
	cancel   context.CancelFunc
)

// session is one spawned server actor plus the client box wired to it.
type session struct {
	client *actors.SimpleMessageBox[CalcResponse, CalcRequest]
	signal types.Sender[types.RuntimeRequest]
}

func init() {
	sessions = make(map[string]*session)
}

func main() {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel})
	slog.SetDefault(slog.New(h))
	programLevel.Set(slog.LevelInfo)

	var err error
	serverConfig, err = config.Load("loomsh.json")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var rootCtx context.Context
	rootCtx, cancel = context.WithCancel(context.Background())
	group, groupCtx = errgroup.WithContext(rootCtx)

	shell := ishell.New()

	shell.SetHomeHistoryPath(".loomsh_history")

	shell.Println("Loom Interactive Shell")

	shell.AddCmd(&ishell.Cmd{
		Name: "trace",
		Help: "set log level to trace",
		Func: func(c *ishell.Context) {
			programLevel.Set(types.LevelTrace)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "debug",
		Help: "set log level to debug",
		Func: func(c *ishell.Context) {
			programLevel.Set(slog.LevelDebug)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "info",
		Help: "set log level to info",
		Func: func(c *ishell.Context) {
			programLevel.Set(slog.LevelInfo)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "spawn",
		Help: "spawn <name> [seq|conc]: start a calculator actor and connect a client to it",
		Func: spawnCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "calc",
		Help: "calc <name> <add|mul> <value>: send a request and await the response",
		Func: calcCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "stop <name>: send a shutdown request to the actor",
		Func: stopCmd,
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "list",
		Help: "list spawned actors",
		Func: func(c *ishell.Context) {
			names := maps.Keys(sessions)
			sort.Strings(names)
			for _, name := range names {
				c.Println(name)
			}
		},
	})

	shell.Run()

	cancel()
	if err := group.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func spawnCmd(c *ishell.Context) {
	if len(c.Args) < 1 {
		c.Println("usage: spawn <name> [seq|conc]")
		return
	}
	name := c.Args[0]
	mode := "seq"
	if len(c.Args) > 1 {
		mode = c.Args[1]
	}

	if _, ok := sessions[name]; ok {
		c.Printf("%s already exists\n", name)
		return
	}

	clientBuilder := actors.NewSimpleMessageBoxBuilder[CalcResponse, CalcRequest]("client-"+name, serverConfig.Capacity)

	var signal types.Sender[types.RuntimeRequest]

	switch mode {
	case "seq":
		builder := actors.NewServerActorBuilder[CalcRequest, CalcResponse](NewCalculator(name), serverConfig)
		actors.AddPeer[CalcRequest, CalcResponse, types.NoConfig](builder, clientBuilder)
		signal = builder.SignalSender()
		group.Go(func() error {
			return builder.Run(groupCtx)
		})
	case "conc":
		builder := actors.NewConcurrentServerActorBuilder[CalcRequest, CalcResponse](NewSharedCalculator(name), serverConfig)
		actors.AddPeer[CalcRequest, CalcResponse, types.NoConfig](builder, clientBuilder)
		signal = builder.SignalSender()
		group.Go(func() error {
			return builder.Run(groupCtx)
		})
	default:
		c.Printf("unknown mode %q\n", mode)
		return
	}

	sessions[name] = &session{
		client: clientBuilder.Build(),
		signal: signal,
	}
	c.Printf("spawned %s (%s)\n", name, mode)
}

func calcCmd(c *ishell.Context) {
	if len(c.Args) < 3 {
		c.Println("usage: calc <name> <add|mul> <value>")
		return
	}
	sess, ok := sessions[c.Args[0]]
	if !ok {
		c.Printf("no such actor %q\n", c.Args[0])
		return
	}
	value, err := strconv.ParseInt(c.Args[2], 10, 64)
	if err != nil {
		c.Println(err)
		return
	}

	ctx, done := context.WithTimeout(groupCtx, requestTimeout)
	defer done()

	if err := sess.client.Send(ctx, CalcRequest{Op: c.Args[1], Value: value}); err != nil {
		c.Println(err)
		return
	}
	resp, err := sess.client.Recv(ctx)
	if err != nil {
		c.Println(err)
		return
	}
	c.Printf("%d -> %d\n", resp.From, resp.To)
}

func stopCmd(c *ishell.Context) {
	if len(c.Args) < 1 {
		c.Println("usage: stop <name>")
		return
	}
	sess, ok := sessions[c.Args[0]]
	if !ok {
		c.Printf("no such actor %q\n", c.Args[0])
		return
	}

	ctx, done := context.WithTimeout(context.Background(), requestTimeout)
	defer done()

	if err := sess.signal.Send(ctx, types.Shutdown); err != nil {
		c.Println(err)
		return
	}
	delete(sessions, c.Args[0])
}
