// Package sh provides an ishell backed operator console over a control
// link: commands are sent as single messages and the replies printed.
package sh

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/sdb.go/pkg/link"
	"github.com/robotalks/sdb.go/pkg/wire"
)

// DefaultTimeout is how long a command waits for its reply.
const DefaultTimeout = time.Second

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	Timeout     time.Duration

	Shell *ishell.Shell
	Conn  link.Conn

	replies chan wire.Reply
	cancel  context.CancelFunc
}

const (
	shellKey = "$shell"
	prompt   = "sdb > "
)

var (
	evalOnly bool
	timeout  time.Duration

	commands = []*ishell.Cmd{
		&StartCmd,
		&ExitCmd,
		&ResetCmd,
		&SendCmd,
		&PendingCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.DurationVar(&timeout, "timeout", DefaultTimeout, "Time to wait for a reply.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell over conn.
func New(conn link.Conn) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Timeout:     timeout,

		Shell: ishell.New(),
		Conn:  conn,

		replies: make(chan wire.Reply, 64),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// HandleMessage implements link.MessageHandler.
func (s *Shell) HandleMessage(ctx context.Context, msg []byte) {
	for _, line := range strings.Split(string(msg), "\n") {
		if r := wire.ParseReply([]byte(line)); r != "" {
			select {
			case s.replies <- r:
			default:
				// oldest reply is dropped
				<-s.replies
				s.replies <- r
			}
		}
	}
}

// Pending returns replies received but not yet consumed.
func (s *Shell) Pending() []wire.Reply {
	var replies []wire.Reply
	for {
		select {
		case r := <-s.replies:
			replies = append(replies, r)
		default:
			return replies
		}
	}
}

// Do sends msg and waits for the first reply.
func (s *Shell) Do(msg []byte) (wire.Reply, error) {
	s.Pending()
	if err := s.Conn.WriteMessage(msg); err != nil {
		return "", err
	}
	select {
	case r := <-s.replies:
		return r, nil
	case <-time.After(s.Timeout):
		return "", fmt.Errorf("no reply within %s", s.Timeout)
	}
}

// DoCommand runs a command and prints its reply.
func DoCommand(c *ishell.Context, msg []byte) error {
	r, err := ShellFrom(c).Do(msg)
	if err != nil {
		c.Err(err)
		return err
	}
	c.Println(string(r))
	return nil
}

// Start starts reading replies from Conn.
func (s *Shell) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go link.NewReader("console", s.Conn, s).Run(ctx)
}

// Close stops reading and closes Conn.
func (s *Shell) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.Conn.Close()
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	s.Start()
	defer s.Close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func opcodeCmd(name string, op wire.Opcode, help string) ishell.Cmd {
	return ishell.Cmd{
		Name:    name,
		Aliases: []string{string(rune(op))},
		Help:    help,
		Func: func(c *ishell.Context) {
			DoCommand(c, op.Bytes())
		},
	}
}

var (
	// StartCmd requests one transfer.
	StartCmd = opcodeCmd("start", wire.OpStart, "request one buffer transfer")
	// ExitCmd aborts the current transfer.
	ExitCmd = opcodeCmd("exit", wire.OpExit, "abort the current transfer")
	// ResetCmd performs the handshake.
	ResetCmd = opcodeCmd("reset", wire.OpReset, "handshake, prints firmware version")

	// SendCmd sends raw text.
	SendCmd = ishell.Cmd{
		Name: "send",
		Help: "TEXT",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("text expected"))
				return
			}
			DoCommand(c, []byte(strings.Join(c.Args, " ")))
		},
	}

	// PendingCmd prints unsolicited replies.
	PendingCmd = ishell.Cmd{
		Name:    "pending",
		Aliases: []string{"p"},
		Help:    "print replies received in background",
		Func: func(c *ishell.Context) {
			for _, r := range ShellFrom(c).Pending() {
				c.Println(string(r))
			}
		},
	}
)

// Main is a helper to provide a single call in main.
func Main(open func() (link.Conn, error)) {
	flag.Parse()
	conn, err := open()
	if err != nil {
		log.Fatalln(err)
	}
	New(conn).Run(flag.Args()...)
}
