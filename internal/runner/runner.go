// Package runner sequences one report run: credentials, connect, enumerate,
// render, deliver, disconnect.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/vmdisk-report/internal/config"
	"github.com/example/vmdisk-report/internal/credstore"
	"github.com/example/vmdisk-report/internal/inventory"
	logging "github.com/example/vmdisk-report/internal/log"
	"github.com/example/vmdisk-report/internal/prompt"
	"github.com/example/vmdisk-report/internal/report"
	"github.com/example/vmdisk-report/internal/types"
)

// Session is an open inventory session.
type Session interface {
	ListVMs(ctx context.Context) ([]inventory.VM, error)
	About() string
	Disconnect(ctx context.Context) error
}

// ConnectFunc opens a session. Failures should be *inventory.ConnectError.
type ConnectFunc func(ctx context.Context, address string, cred credstore.Credential) (Session, error)

// CredentialStore is the subset of credstore.Store a run needs.
type CredentialStore interface {
	Load(scope string) (credstore.Credential, error)
	Save(scope string, cred credstore.Credential) error
}

// Dispatcher delivers a rendered document.
type Dispatcher interface {
	Deliver(ctx context.Context, doc []byte) error
}

// Report formats for file mode. Mail is always HTML.
const (
	FormatHTML     = "html"
	FormatMarkdown = "md"
)

// ConfigError reports settings that make a run impossible.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "invalid configuration: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// Runner holds everything one run depends on.
type Runner struct {
	Config   *config.Config
	FileMode bool
	Format   string

	Store    CredentialStore
	Prompter prompt.Prompter
	Connect  ConnectFunc

	FileDispatcher func(fileName string) Dispatcher
	MailDispatcher func(cfg config.MailConfig, cred credstore.Credential) Dispatcher

	Observer Observer
	Now      func() time.Time
}

// Result summarizes a completed run.
type Result struct {
	Report *types.Report
	// DeliveryErr is set when mail delivery failed; the run itself still
	// counts as complete.
	DeliveryErr error
}

// run is the state of a single invocation.
type run struct {
	*Runner
	inventoryCred credstore.Credential
	mailCred      credstore.Credential
	session       Session
	report        *types.Report
	doc           []byte
}

// Run performs one report run. A connection failure returns before anything
// is enumerated or delivered. Once connected, the session is always closed.
func (r *Runner) Run(ctx context.Context) (res *Result, err error) {
	rn := &run{Runner: r}
	if rn.Observer == nil {
		rn.Observer = nopObserver{}
	}
	if rn.Now == nil {
		rn.Now = time.Now
	}
	if rn.Format == "" {
		rn.Format = FormatHTML
	}
	log := logging.FromContext(ctx)

	rn.step(StepPrerequisites)
	if err := rn.checkPrerequisites(); err != nil {
		return nil, err
	}

	rn.step(StepInventoryCredential)
	host := rn.Config.VSphere.Host
	if rn.inventoryCred, err = rn.credential(ctx, credstore.ScopeID(host), host); err != nil {
		return nil, err
	}

	if !rn.FileMode {
		rn.step(StepMailCredential)
		if rn.mailCred, err = rn.credential(ctx, credstore.ScopeEmail, credstore.ScopeEmail); err != nil {
			return nil, err
		}
	}

	rn.step(StepConnect)
	if err := rn.connect(ctx); err != nil {
		return nil, err
	}
	defer func() {
		rn.step(StepDisconnect)
		if derr := rn.session.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			log.Warn().Err(derr).Msg("disconnect failed")
		}
		if err == nil {
			rn.step(StepDone)
		}
	}()

	rn.step(StepEnumerate)
	if err := rn.enumerate(ctx); err != nil {
		return nil, err
	}

	rn.step(StepRender)
	if err := rn.render(); err != nil {
		return nil, err
	}

	rn.step(StepDispatch)
	res = &Result{Report: rn.report}
	if err := rn.dispatch(ctx); err != nil {
		if rn.FileMode {
			return nil, err
		}
		log.Warn().Err(err).Msg("Report delivery failed")
		res.DeliveryErr = err
	}
	return res, nil
}

func (rn *run) step(s Step) {
	rn.Observer.Progress(s, s.Percent())
}

func (rn *run) checkPrerequisites() error {
	if rn.Config == nil {
		return &ConfigError{Err: errors.New("no configuration loaded")}
	}
	if err := rn.Config.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	if rn.FileMode {
		if rn.Format != FormatHTML && rn.Format != FormatMarkdown {
			return &ConfigError{Err: fmt.Errorf("unsupported format: %s", rn.Format)}
		}
	} else {
		if rn.Format != FormatHTML {
			return &ConfigError{Err: fmt.Errorf("mail reports are always html, got format %s", rn.Format)}
		}
		if err := rn.Config.Mail.Validate(); err != nil {
			return &ConfigError{Err: err}
		}
	}
	return nil
}

// credential loads the stored credential for scope, prompting and saving a
// new one when none is usable.
func (rn *run) credential(ctx context.Context, scope, label string) (credstore.Credential, error) {
	return ResolveCredential(ctx, rn.Store, rn.Prompter, scope, label)
}

// ResolveCredential returns the credential stored for scope. When the store
// reports credstore.ErrNotFound the operator is prompted and the answer is
// saved. Any other store error is returned without prompting.
func ResolveCredential(ctx context.Context, store CredentialStore, p prompt.Prompter, scope, label string) (credstore.Credential, error) {
	log := logging.FromContext(ctx)

	cred, err := store.Load(scope)
	if err == nil {
		log.Debug().Str("scope", scope).Msg("using stored credential")
		return cred, nil
	}
	if !errors.Is(err, credstore.ErrNotFound) {
		return credstore.Credential{}, fmt.Errorf("loading credential for %s: %w", label, err)
	}
	log.Debug().Err(err).Str("scope", scope).Msg("no usable stored credential")

	return PromptAndSave(ctx, store, p, scope, label)
}

// PromptAndSave asks for a credential and stores it under scope, replacing
// any previous one.
func PromptAndSave(ctx context.Context, store CredentialStore, p prompt.Prompter, scope, label string) (credstore.Credential, error) {
	cred, err := p.Credential(ctx, label)
	if err != nil {
		return credstore.Credential{}, fmt.Errorf("credential for %s: %w", label, err)
	}
	if err := store.Save(scope, cred); err != nil {
		return credstore.Credential{}, fmt.Errorf("saving credential for %s: %w", label, err)
	}
	return cred, nil
}

func (rn *run) connect(ctx context.Context) error {
	timeout := time.Duration(rn.Config.VSphere.Timeout) * time.Second
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := rn.Connect(cctx, rn.Config.VSphere.Host, rn.inventoryCred)
	if err != nil {
		var ce *inventory.ConnectError
		if errors.As(err, &ce) {
			return err
		}
		return &inventory.ConnectError{Address: rn.Config.VSphere.Host, Err: err}
	}
	rn.session = session
	return nil
}

func (rn *run) enumerate(ctx context.Context) error {
	vms, err := rn.session.ListVMs(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate virtual machines: %w", err)
	}
	rows := report.Rows(vms)
	logging.FromContext(ctx).Info().Int("vms", len(vms)).Int("disks", len(rows)).Msg("Inventory collected")

	rn.report = &types.Report{
		Title:            rn.Config.Report.Title,
		Endpoint:         rn.Config.VSphere.Host,
		Product:          rn.session.About(),
		Timestamp:        rn.Now(),
		WarnBelowPercent: rn.Config.Report.WarnBelowPercent,
		Rows:             rows,
	}
	return nil
}

func (rn *run) render() error {
	if rn.Format == FormatMarkdown {
		md, err := report.RenderMarkdown(rn.report)
		if err != nil {
			return err
		}
		rn.doc = []byte(md)
		return nil
	}
	doc, err := report.RenderHTML(rn.report)
	if err != nil {
		return err
	}
	rn.doc = doc
	return nil
}

func (rn *run) dispatch(ctx context.Context) error {
	var d Dispatcher
	if rn.FileMode {
		name := "VMDiskReport." + rn.Format
		d = rn.FileDispatcher(name)
	} else {
		d = rn.MailDispatcher(rn.Config.Mail, rn.mailCred)
	}
	return d.Deliver(ctx, rn.doc)
}
