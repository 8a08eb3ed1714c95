package session_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/railyardhq/railyard/internal/git"
	"github.com/railyardhq/railyard/internal/prompt"
	"github.com/railyardhq/railyard/internal/resolve"
	"github.com/railyardhq/railyard/internal/session"
)

// aborted is a scripted choice that makes the fake prompter report the
// operator backing out of a prompt.
const aborted = "<aborted>"

type fakeDriver struct {
	git.NoopDriver

	oursResolved   []string
	theirsResolved []string
	fileResolved   map[string]string
	stagedAll      bool
	commits        []string
	continueCalled bool
	mergeAborted   bool
	pickAborted    bool
	escalations    []escalationCall

	resolveErr error
	commitErr  error
}

type escalationCall struct {
	prefix string
	label  string
}

func (d *fakeDriver) ResolveUseOurs(_ context.Context, path string) error {
	if d.resolveErr != nil {
		return d.resolveErr
	}
	d.oursResolved = append(d.oursResolved, path)
	return nil
}

func (d *fakeDriver) ResolveUseTheirs(_ context.Context, path string) error {
	if d.resolveErr != nil {
		return d.resolveErr
	}
	d.theirsResolved = append(d.theirsResolved, path)
	return nil
}

func (d *fakeDriver) ResolveFile(_ context.Context, path, content string) error {
	if d.resolveErr != nil {
		return d.resolveErr
	}
	if d.fileResolved == nil {
		d.fileResolved = make(map[string]string)
	}
	d.fileResolved[path] = content
	return nil
}

func (d *fakeDriver) StageAll(context.Context) error {
	d.stagedAll = true
	return nil
}

func (d *fakeDriver) CommitResolution(_ context.Context, message string) (string, error) {
	if d.commitErr != nil {
		return "", d.commitErr
	}
	d.commits = append(d.commits, message)
	return "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", nil
}

func (d *fakeDriver) CherryPickContinue(context.Context) error {
	d.continueCalled = true
	return nil
}

func (d *fakeDriver) AbortMerge(context.Context) error {
	d.mergeAborted = true
	return nil
}

func (d *fakeDriver) CherryPickAbort(context.Context) error {
	d.pickAborted = true
	return nil
}

func (d *fakeDriver) CreateEscalationBranch(_ context.Context, prefix, label string) (string, error) {
	d.escalations = append(d.escalations, escalationCall{prefix: prefix, label: label})
	return prefix + "/" + label + "-1700000000", nil
}

type shownBlock struct {
	title string
	body  string
}

type fakePrompter struct {
	selections []string
	confirms   []bool
	inputs     []string
	edits      []string

	selectTitles  []string
	selectOptions [][]prompt.Option
	editInitials  []string
	shown         []shownBlock
}

func (p *fakePrompter) Select(title string, options []prompt.Option) (string, error) {
	p.selectTitles = append(p.selectTitles, title)
	p.selectOptions = append(p.selectOptions, options)
	if len(p.selections) == 0 {
		return "", fmt.Errorf("unscripted select %q", title)
	}
	choice := p.selections[0]
	p.selections = p.selections[1:]
	if choice == aborted {
		return "", prompt.ErrAborted
	}
	return choice, nil
}

func (p *fakePrompter) Confirm(title string, _ bool) (bool, error) {
	if len(p.confirms) == 0 {
		return false, fmt.Errorf("unscripted confirm %q", title)
	}
	answer := p.confirms[0]
	p.confirms = p.confirms[1:]
	return answer, nil
}

func (p *fakePrompter) Input(title, _ string) (string, error) {
	if len(p.inputs) == 0 {
		return "", fmt.Errorf("unscripted input %q", title)
	}
	value := p.inputs[0]
	p.inputs = p.inputs[1:]
	return value, nil
}

func (p *fakePrompter) Edit(title, initial string) (string, error) {
	p.editInitials = append(p.editInitials, initial)
	if len(p.edits) == 0 {
		return "", fmt.Errorf("unscripted edit %q", title)
	}
	value := p.edits[0]
	p.edits = p.edits[1:]
	if value == aborted {
		return "", prompt.ErrAborted
	}
	return value, nil
}

func (p *fakePrompter) MultiSelect(title string, _ []prompt.Option) ([]string, error) {
	return nil, fmt.Errorf("unscripted multi-select %q", title)
}

func (p *fakePrompter) Show(title, body string) {
	p.shown = append(p.shown, shownBlock{title: title, body: body})
}

type resolveCall struct {
	path string
	mode resolve.Mode
}

type fakeResolver struct {
	proposals map[string]string
	err       error
	calls     []resolveCall
}

func (r *fakeResolver) Resolve(_ context.Context, file git.ConflictedFile, mode resolve.Mode) (string, error) {
	r.calls = append(r.calls, resolveCall{path: file.Path, mode: mode})
	if r.err != nil {
		return "", r.err
	}
	return r.proposals[file.Path], nil
}

func optionValues(options []prompt.Option) []string {
	values := make([]string, len(options))
	for i, opt := range options {
		values[i] = opt.Value
	}
	return values
}

var _ = Describe("Session", func() {
	var (
		ctx      context.Context
		driver   *fakeDriver
		prompter *fakePrompter
		files    []git.ConflictedFile
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = &fakeDriver{}
		prompter = &fakePrompter{}
		files = []git.ConflictedFile{
			{
				Path:    "api/server.go",
				Ours:    "ours a\n",
				Theirs:  "theirs a\n",
				Content: "<<<<<<< HEAD\nours a\n=======\ntheirs a\n>>>>>>> develop\n",
			},
			{
				Path:    "api/router.go",
				Ours:    "ours b\n",
				Theirs:  "theirs b\n",
				Content: "<<<<<<< HEAD\nours b\n=======\ntheirs b\n>>>>>>> develop\n",
			},
		}
	})

	newSession := func(mode resolve.Mode, resolver resolve.Resolver) *session.Session {
		return session.New(session.Config{
			Repo:             "api",
			Operation:        session.OpMerge,
			Source:           "develop",
			Target:           "staging",
			Files:            files,
			Driver:           driver,
			Prompter:         prompter,
			Resolver:         resolver,
			Mode:             mode,
			EscalationPrefix: "escalation",
		})
	}

	It("resolves every file and commits on confirmation", func() {
		prompter.selections = []string{"use-ours", "use-theirs"}
		prompter.confirms = []bool{true}
		prompter.inputs = []string{""}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusResolved))
		Expect(s.ResolvedPaths).To(Equal([]string{"api/server.go", "api/router.go"}))
		Expect(s.ResolvedPaths).To(HaveLen(len(s.Files)))
		Expect(driver.oursResolved).To(Equal([]string{"api/server.go"}))
		Expect(driver.theirsResolved).To(Equal([]string{"api/router.go"}))
		Expect(driver.commits).To(Equal([]string{"Merge develop into staging"}))
		Expect(s.CommitID).NotTo(BeEmpty())
		Expect(s.Committed).To(BeTrue())
	})

	It("leaves the resolution uncommitted when declined", func() {
		prompter.selections = []string{"use-ours", "use-ours"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusResolved))
		Expect(driver.commits).To(BeEmpty())
		Expect(s.CommitID).To(BeEmpty())
		Expect(s.Committed).To(BeFalse())
	})

	It("concludes a cherry-pick through the sequencer instead of a plain commit", func() {
		files = files[:1]
		prompter.selections = []string{"use-theirs"}
		prompter.confirms = []bool{true}

		s := session.New(session.Config{
			Repo:      "api",
			Operation: session.OpCherryPick,
			Source:    "abc1234",
			Target:    "staging",
			Files:     files,
			Driver:    driver,
			Prompter:  prompter,
		})
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusResolved))
		Expect(driver.continueCalled).To(BeTrue())
		Expect(driver.commits).To(BeEmpty())
		Expect(s.Committed).To(BeTrue())
	})

	It("hides AI strategies when the mode is off", func() {
		prompter.selections = []string{"use-ours", "use-ours"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(prompter.selectOptions[0]).NotTo(BeEmpty())
		values := optionValues(prompter.selectOptions[0])
		Expect(values).NotTo(ContainElement("ai-auto"))
		Expect(values).NotTo(ContainElement("ai-suggest"))
	})

	It("offers AI strategies when the mode is enabled", func() {
		prompter.selections = []string{"use-ours", "use-ours"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeSuggest, &fakeResolver{})
		Expect(s.Run(ctx)).To(Succeed())

		values := optionValues(prompter.selectOptions[0])
		Expect(values).To(ContainElement("ai-auto"))
		Expect(values).To(ContainElement("ai-suggest"))
	})

	It("applies an automatic resolution without further prompting", func() {
		files = files[:1]
		resolver := &fakeResolver{proposals: map[string]string{"api/server.go": "merged a\n"}}
		prompter.selections = []string{"ai-auto"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeAuto, resolver)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusResolved))
		Expect(driver.fileResolved).To(HaveKeyWithValue("api/server.go", "merged a\n"))
		Expect(resolver.calls).To(Equal([]resolveCall{{path: "api/server.go", mode: resolve.ModeAuto}}))
	})

	It("re-presents the menu when the resolver proposes nothing", func() {
		files = files[:1]
		resolver := &fakeResolver{}
		prompter.selections = []string{"ai-auto", "use-ours"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeAuto, resolver)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusResolved))
		Expect(prompter.selectTitles).To(HaveLen(2))
		Expect(prompter.selectTitles[1]).To(Equal(prompter.selectTitles[0]))
		Expect(driver.oursResolved).To(Equal([]string{"api/server.go"}))
	})

	It("falls back to the menu when the resolver is unavailable", func() {
		files = files[:1]
		prompter.selections = []string{"ai-auto", "use-theirs"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeAuto, resolve.Disabled{})
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusResolved))
		Expect(driver.theirsResolved).To(Equal([]string{"api/server.go"}))
	})

	It("discards proposals that still contain conflict markers", func() {
		files = files[:1]
		resolver := &fakeResolver{proposals: map[string]string{
			"api/server.go": "<<<<<<< HEAD\nstill broken\n=======\nnope\n>>>>>>> develop\n",
		}}
		prompter.selections = []string{"ai-auto", "use-ours"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeAuto, resolver)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(driver.fileResolved).To(BeEmpty())
		Expect(driver.oursResolved).To(Equal([]string{"api/server.go"}))
	})

	It("requires an explicit decision before applying a suggestion", func() {
		files = files[:1]
		resolver := &fakeResolver{proposals: map[string]string{"api/server.go": "merged a\n"}}
		prompter.selections = []string{"ai-suggest", "accept"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeSuggest, resolver)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(driver.fileResolved).To(HaveKeyWithValue("api/server.go", "merged a\n"))
		Expect(resolver.calls).To(Equal([]resolveCall{{path: "api/server.go", mode: resolve.ModeSuggest}}))
		Expect(prompter.shown).NotTo(BeEmpty())
		Expect(prompter.shown[0].body).To(Equal("merged a\n"))
	})

	It("lets the operator edit a suggestion before applying it", func() {
		files = files[:1]
		resolver := &fakeResolver{proposals: map[string]string{"api/server.go": "merged a\n"}}
		prompter.selections = []string{"ai-suggest", "accept-and-edit"}
		prompter.edits = []string{"merged and tweaked\n"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeSuggest, resolver)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(prompter.editInitials).To(Equal([]string{"merged a\n"}))
		Expect(driver.fileResolved).To(HaveKeyWithValue("api/server.go", "merged and tweaked\n"))
	})

	It("returns to the strategy menu when a suggestion is rejected", func() {
		files = files[:1]
		resolver := &fakeResolver{proposals: map[string]string{"api/server.go": "merged a\n"}}
		prompter.selections = []string{"ai-suggest", "reject", "use-ours"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeSuggest, resolver)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(driver.fileResolved).To(BeEmpty())
		Expect(driver.oursResolved).To(Equal([]string{"api/server.go"}))
	})

	It("seeds manual edits from the ours version", func() {
		files = files[:1]
		prompter.selections = []string{"manual-edit"}
		prompter.edits = []string{"hand merged\n"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(prompter.editInitials).To(Equal([]string{"ours a\n"}))
		Expect(driver.fileResolved).To(HaveKeyWithValue("api/server.go", "hand merged\n"))
	})

	It("returns to the strategy menu when the editor is dismissed", func() {
		files = files[:1]
		prompter.selections = []string{"manual-edit", "use-ours"}
		prompter.edits = []string{aborted}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(driver.fileResolved).To(BeEmpty())
		Expect(driver.oursResolved).To(Equal([]string{"api/server.go"}))
	})

	It("treats backing out of the file menu as a skip", func() {
		files = files[:1]
		prompter.selections = []string{aborted, "retry", "use-ours"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusResolved))
		Expect(driver.oursResolved).To(Equal([]string{"api/server.go"}))
	})

	It("shows the full conflict and re-enters the same prompt", func() {
		files = files[:1]
		prompter.selections = []string{"view-full-conflict", "use-theirs"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(prompter.shown).To(HaveLen(1))
		Expect(prompter.shown[0].body).To(Equal(files[0].Content))
		Expect(driver.theirsResolved).To(Equal([]string{"api/server.go"}))
	})

	It("retries remaining files after a pass with skips", func() {
		prompter.selections = []string{"use-ours", "skip", "retry", "use-theirs"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusResolved))
		Expect(driver.oursResolved).To(Equal([]string{"api/server.go"}))
		Expect(driver.theirsResolved).To(Equal([]string{"api/router.go"}))
	})

	It("aborts the whole merge and returns to pending", func() {
		prompter.selections = []string{"skip", "skip", "abort"}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusPending))
		Expect(driver.mergeAborted).To(BeTrue())
		Expect(driver.pickAborted).To(BeFalse())
		Expect(s.Unresolved()).To(HaveLen(2))
	})

	It("aborts a cherry-pick through the sequencer", func() {
		files = files[:1]
		prompter.selections = []string{"skip", "abort"}

		s := session.New(session.Config{
			Repo:      "api",
			Operation: session.OpCherryPick,
			Source:    "abc1234",
			Target:    "staging",
			Files:     files,
			Driver:    driver,
			Prompter:  prompter,
		})
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusPending))
		Expect(driver.pickAborted).To(BeTrue())
		Expect(driver.mergeAborted).To(BeFalse())
	})

	It("leaves conflicts in place without touching the driver", func() {
		prompter.selections = []string{"skip", "skip", "leave"}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusInProgress))
		Expect(driver.mergeAborted).To(BeFalse())
		Expect(driver.stagedAll).To(BeFalse())
	})

	It("treats backing out of the exhaustion menu as leaving", func() {
		prompter.selections = []string{"skip", "skip", aborted}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusInProgress))
	})

	It("escalates partial work onto a rescue branch", func() {
		prompter.selections = []string{"use-ours", "skip", "escalate"}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())

		Expect(s.Status).To(Equal(session.StatusEscalated))
		Expect(driver.escalations).To(Equal([]escalationCall{{prefix: "escalation", label: "api-staging"}}))
		Expect(s.EscalationBranch).To(Equal("escalation/api-staging-1700000000"))
		Expect(driver.stagedAll).To(BeTrue())
		Expect(driver.commits).To(HaveLen(1))
		Expect(driver.commits[0]).To(ContainSubstring("WIP"))
		Expect(s.Committed).To(BeFalse())
		Expect(s.Unresolved()).To(Equal([]string{"api/router.go"}))
	})

	It("surfaces driver failures instead of swallowing them", func() {
		driver.resolveErr = errors.New("index locked")
		prompter.selections = []string{"use-ours"}

		s := newSession(resolve.ModeOff, nil)
		err := s.Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("index locked")))
		Expect(s.Status).To(Equal(session.StatusInProgress))
	})

	It("refuses to run twice", func() {
		prompter.selections = []string{"use-ours", "use-ours"}
		prompter.confirms = []bool{false}

		s := newSession(resolve.ModeOff, nil)
		Expect(s.Run(ctx)).To(Succeed())
		Expect(s.Run(ctx)).To(MatchError(ContainSubstring("already")))
	})
})
