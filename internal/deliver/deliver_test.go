package deliver

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/example/vmdisk-report/internal/config"
	"github.com/example/vmdisk-report/internal/credstore"
)

func TestFileDispatcher(t *testing.T) {
	var opened string
	d := &FileDispatcher{
		Dir:  t.TempDir(),
		Name: DefaultFileName,
		Open: func(path string) error { opened = path; return nil },
	}

	require.NoError(t, d.Deliver(context.Background(), []byte("<html>report</html>")))

	data, err := os.ReadFile(d.Path())
	require.NoError(t, err)
	assert.Equal(t, "<html>report</html>", string(data))
	assert.Equal(t, d.Path(), opened)
}

func TestFileDispatcher_OpenFailureIsNotFatal(t *testing.T) {
	d := &FileDispatcher{
		Dir:  t.TempDir(),
		Name: "r.html",
		Open: func(string) error { return errors.New("no display") },
	}
	assert.NoError(t, d.Deliver(context.Background(), []byte("x")))
}

func TestFileDispatcher_WriteFailure(t *testing.T) {
	d := &FileDispatcher{Dir: filepath.Join(t.TempDir(), "missing"), Name: "r.html"}
	assert.Error(t, d.Deliver(context.Background(), []byte("x")))
}

func TestNewFileDispatcher(t *testing.T) {
	d := NewFileDispatcher("")
	assert.Equal(t, filepath.Join(os.TempDir(), DefaultFileName), d.Path())
	assert.NotNil(t, d.Open)
}

// fakeSMTP accepts one session and records the commands the client sends.
// It advertises STARTTLS so a client that wanted TLS would try it.
type fakeSMTP struct {
	addr     string
	mu       sync.Mutex
	commands []string
	body     strings.Builder
	done     chan struct{}
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{addr: l.Addr().String(), done: make(chan struct{})}
	t.Cleanup(func() { l.Close() })

	go func() {
		defer close(s.done)
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(10 * time.Second))
		s.serve(conn)
	}()
	return s
}

func (s *fakeSMTP) serve(conn net.Conn) {
	r := bufio.NewReader(conn)
	reply := func(line string) { conn.Write([]byte(line + "\r\n")) }
	reply("220 fake.smtp ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])

		s.mu.Lock()
		s.commands = append(s.commands, verb)
		s.mu.Unlock()

		switch verb {
		case "EHLO":
			reply("250-fake.smtp")
			reply("250-STARTTLS")
			reply("250 AUTH PLAIN LOGIN")
		case "STARTTLS":
			reply("454 TLS not available")
		case "AUTH":
			reply("235 2.7.0 Authentication successful")
		case "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			for {
				dl, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if strings.TrimRight(dl, "\r\n") == "." {
					break
				}
				s.mu.Lock()
				s.body.WriteString(dl)
				s.mu.Unlock()
			}
			reply("250 OK queued")
		case "QUIT":
			reply("221 Bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func (s *fakeSMTP) port(t *testing.T) int {
	_, p, err := net.SplitHostPort(s.addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return port
}

func mailConfig(port int, useSSL bool) config.MailConfig {
	return config.MailConfig{
		From:     "reports@lab.local",
		To:       []string{"ops@lab.local", "storage@lab.local"},
		SMTPHost: "127.0.0.1",
		SMTPPort: port,
		UseSSL:   useSSL,
		Subject:  config.DefaultSubject,
	}
}

func TestMailDispatcher_NoTLSUsesConfiguredPort(t *testing.T) {
	server := startFakeSMTP(t)
	port := server.port(t)

	d := NewMailDispatcher(mailConfig(port, false), credstore.Credential{Username: "mailer", Password: "pw"})

	client, err := d.client()
	require.NoError(t, err)
	assert.Equal(t, mail.NoTLS.String(), client.TLSPolicy())
	assert.Equal(t, "127.0.0.1:"+strconv.Itoa(port), client.ServerAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, d.Deliver(ctx, []byte("<html><body>disks</body></html>")))
	<-server.done

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.NotContains(t, server.commands, "STARTTLS")
	assert.Contains(t, server.commands, "AUTH")
	assert.Contains(t, server.commands, "DATA")

	body := server.body.String()
	assert.Contains(t, body, "Subject: "+config.DefaultSubject)
	assert.Contains(t, body, "text/html")
	assert.Contains(t, body, "storage@lab.local")
}

func TestMailDispatcher_SSLRequiresTLS(t *testing.T) {
	d := NewMailDispatcher(mailConfig(587, true), credstore.Credential{Username: "mailer", Password: "pw"})
	client, err := d.client()
	require.NoError(t, err)
	assert.Equal(t, mail.TLSMandatory.String(), client.TLSPolicy())
	assert.True(t, strings.HasSuffix(client.ServerAddr(), ":587"))
}

func TestMailDispatcher_SendFailure(t *testing.T) {
	d := NewMailDispatcher(mailConfig(2525, false), credstore.Credential{Username: "mailer"})
	d.send = func(context.Context, *mail.Client, *mail.Msg) error { return errors.New("connection refused") }

	err := d.Deliver(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMailDispatcher_InvalidSender(t *testing.T) {
	cfg := mailConfig(25, false)
	cfg.From = "not-an-address"
	d := NewMailDispatcher(cfg, credstore.Credential{})
	assert.Error(t, d.Deliver(context.Background(), []byte("x")))
}
