package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/railyardhq/railyard/internal/git"
	gh "github.com/railyardhq/railyard/internal/github"
	"github.com/railyardhq/railyard/internal/manifest"
	"github.com/railyardhq/railyard/internal/orchestrator"
	"github.com/railyardhq/railyard/internal/prompt"
	"github.com/railyardhq/railyard/internal/registry"
	"github.com/railyardhq/railyard/internal/resolve"
	"github.com/railyardhq/railyard/internal/session"
)

var _ = Describe("Engine", func() {
	var (
		ctx      context.Context
		drivers  map[string]*fakeDriver
		man      *manifest.Manifest
		reg      *registry.Registry
		prompter *fakePrompter
		ghc      *fakeGHClient
		engine   *orchestrator.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmp := GinkgoT().TempDir()

		man = &manifest.Manifest{
			Repositories: []manifest.Repository{
				{
					Name:     "api",
					Path:     filepath.Join(tmp, "api"),
					URL:      "git@github.com:railyard/api.git",
					Branches: map[string]string{"dev": "develop", "prod": "main"},
				},
				{
					Name:     "auth",
					Path:     filepath.Join(tmp, "auth"),
					Branches: map[string]string{"dev": "dev"},
				},
				{
					Name: "billing",
					Path: filepath.Join(tmp, "billing"),
				},
				{
					Name: "ghost",
					Path: filepath.Join(tmp, "not-cloned"),
				},
			},
			Groups: []manifest.Group{
				{Name: "backend", Repos: []string{"api", "auth", "billing"}},
				{Name: "fleet", Repos: []string{"api", "ghost", "auth"}},
			},
		}
		man.ApplyDefaults()
		Expect(man.Validate()).To(Succeed())

		drivers = map[string]*fakeDriver{}
		for _, name := range []string{"api", "auth", "billing"} {
			repo, _ := man.Repository(name)
			path, err := repo.AbsPath()
			Expect(err).NotTo(HaveOccurred())
			Expect(mkdir(path)).To(Succeed())
			drivers[name] = &fakeDriver{name: name, mergeResult: git.MergeResult{Success: true}}
		}

		reg = registry.NewWithOpener(man, func(repo manifest.Repository, path string) (git.Driver, error) {
			driver, ok := drivers[repo.Name]
			if !ok {
				return nil, fmt.Errorf("no fake driver for %q", repo.Name)
			}
			return driver, nil
		}, nil)

		prompter = &fakePrompter{}
		ghc = &fakeGHClient{}
		engine = orchestrator.New(orchestrator.Config{
			Registry:         reg,
			Prompter:         prompter,
			Mode:             resolve.ModeOff,
			PRClient:         ghc,
			EscalationPrefix: "escalation",
			PRRetryDelay:     time.Millisecond,
			Logger:           slog.New(slog.NewTextHandler(GinkgoWriter, nil)),
		})
	})

	Describe("target building", func() {
		It("resolves branch aliases per repository", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "backend", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())
			Expect(targets).To(HaveLen(3))

			Expect(targets[0].Repo.Name).To(Equal("api"))
			Expect(targets[0].Source).To(Equal("develop"))
			Expect(targets[0].Branch).To(Equal("staging"))

			Expect(targets[1].Repo.Name).To(Equal("auth"))
			Expect(targets[1].Source).To(Equal("dev"))

			Expect(targets[2].Repo.Name).To(Equal("billing"))
			Expect(targets[2].Source).To(Equal("dev"))
		})

		It("surfaces unknown scopes", func() {
			_, err := orchestrator.BuildMergeTargets(reg, "frontend", "dev", "staging")
			var unknownErr *registry.UnknownTargetError
			Expect(errors.As(err, &unknownErr)).To(BeTrue())
		})

		It("refuses cherry-pick targets without commits", func() {
			_, err := orchestrator.BuildCherryPickTargets(reg, "api", "dev", "staging", nil)
			Expect(err).To(MatchError(ContainSubstring("no commits")))
		})
	})

	Describe("merge runs", func() {
		It("records success for every clean repository", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "backend", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for _, result := range results {
				Expect(result.Status).To(Equal(orchestrator.StatusSuccess))
				Expect(result.Session).To(BeNil())
			}

			Expect(drivers["api"].merges).To(Equal([]mergeCall{{source: "develop", target: "staging"}}))
			Expect(drivers["auth"].merges).To(Equal([]mergeCall{{source: "dev", target: "staging"}}))
			Expect(drivers["api"].escalations).To(BeEmpty())
		})

		It("isolates one repository's failure from the rest", func() {
			drivers["auth"].mergeErr = errors.New("index locked")

			targets, err := orchestrator.BuildMergeTargets(reg, "backend", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[1].Status).To(Equal(orchestrator.StatusError))
			Expect(results[1].Message).To(ContainSubstring("index locked"))
			Expect(results[2].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(drivers["billing"].merges).To(HaveLen(1))
		})

		It("skips targets whose source and target resolve to the same branch", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "api", "staging", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSkipped))
			Expect(drivers["api"].merges).To(BeEmpty())
		})

		It("skips repositories whose working copy is missing", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "fleet", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[1].Status).To(Equal(orchestrator.StatusSkipped))
			Expect(results[1].Message).To(ContainSubstring("not-cloned"))
			Expect(results[2].Status).To(Equal(orchestrator.StatusSuccess))
		})

		It("pushes the operated branch when requested", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true, Push: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(drivers["api"].pushes).To(Equal([]pushCall{{remote: "origin", branch: "staging"}}))
		})

		It("restores the stash on the error path", func() {
			drivers["api"].stashed = true
			drivers["api"].mergeErr = errors.New("disk full")

			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusError))
			Expect(drivers["api"].stashCalls).To(Equal(1))
			Expect(drivers["api"].restoreCalls).To(Equal(1))
		})

		It("rejects an empty target list", func() {
			_, err := engine.ExecuteMerge(ctx, nil, orchestrator.Options{})
			Expect(err).To(MatchError(ContainSubstring("no targets")))
		})
	})

	Describe("conflicted merges", func() {
		BeforeEach(func() {
			drivers["api"].mergeResult = git.MergeResult{Conflicts: []string{"handlers.go"}}
			drivers["api"].files = []git.ConflictedFile{{
				Path:    "handlers.go",
				Ours:    "ours\n",
				Theirs:  "theirs\n",
				Content: "<<<<<<< HEAD\nours\n=======\ntheirs\n>>>>>>> develop\n",
			}}
		})

		It("records success when the session resolves and commits", func() {
			prompter.selections = []string{"use-ours"}
			prompter.confirms = []bool{true}
			prompter.inputs = []string{""}

			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true, Push: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[0].Session).NotTo(BeNil())
			Expect(results[0].Session.Status).To(Equal(session.StatusResolved))
			Expect(results[0].Message).To(ContainSubstring("resolving 1 conflict(s)"))
			Expect(drivers["api"].pushes).To(Equal([]pushCall{{remote: "origin", branch: "staging"}}))
		})

		It("keeps a resolved but uncommitted session unpushed", func() {
			prompter.selections = []string{"use-ours"}
			prompter.confirms = []bool{false}

			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true, Push: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[0].Message).To(ContainSubstring("commit left to operator"))
			Expect(drivers["api"].pushes).To(BeEmpty())
		})

		It("embeds the session when the operator escalates", func() {
			prompter.selections = []string{"skip", "escalate"}

			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusConflict))
			Expect(results[0].Session.Status).To(Equal(session.StatusEscalated))
			Expect(results[0].Message).To(ContainSubstring("escalated to escalation/api-staging"))
			Expect(drivers["api"].pushes).To(BeEmpty())
		})

		It("embeds the session when the operator aborts", func() {
			prompter.selections = []string{"skip", "abort"}

			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusConflict))
			Expect(results[0].Session.Status).To(Equal(session.StatusPending))
			Expect(results[0].Message).To(ContainSubstring("aborted"))
			Expect(drivers["api"].mergeAborted).To(BeTrue())
		})
	})

	Describe("cherry-pick runs", func() {
		It("applies the whole commit list on success", func() {
			repo, _ := man.Repository("api")
			targets := []orchestrator.Target{
				orchestrator.NewCherryPickTarget(repo, "dev", "staging", []string{"c1", "c2", "c3"}),
			}

			results, err := engine.ExecuteCherryPick(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(drivers["api"].picks).To(Equal([][]string{{"c1", "c2", "c3"}}))
		})

		It("resumes the remaining commits after a concluded resolution", func() {
			drivers["api"].pickResults = []git.CherryPickResult{
				{Applied: []string{"c1"}, FailedAt: "c2", Conflicts: []string{"handlers.go"}},
			}
			drivers["api"].files = []git.ConflictedFile{{Path: "handlers.go", Ours: "ours\n", Theirs: "theirs\n"}}
			prompter.selections = []string{"use-theirs"}
			prompter.confirms = []bool{true}

			repo, _ := man.Repository("api")
			targets := []orchestrator.Target{
				orchestrator.NewCherryPickTarget(repo, "dev", "staging", []string{"c1", "c2", "c3"}),
			}

			results, err := engine.ExecuteCherryPick(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[0].Session.Committed).To(BeTrue())
			Expect(drivers["api"].continueCalled).To(BeTrue())
			Expect(drivers["api"].picks).To(Equal([][]string{{"c1", "c2", "c3"}, {"c3"}}))
		})

		It("leaves remaining commits unapplied when conclusion is declined", func() {
			drivers["api"].pickResults = []git.CherryPickResult{
				{Applied: []string{"c1"}, FailedAt: "c2", Conflicts: []string{"handlers.go"}},
			}
			drivers["api"].files = []git.ConflictedFile{{Path: "handlers.go", Ours: "ours\n", Theirs: "theirs\n"}}
			prompter.selections = []string{"use-theirs"}
			prompter.confirms = []bool{false}

			repo, _ := man.Repository("api")
			targets := []orchestrator.Target{
				orchestrator.NewCherryPickTarget(repo, "dev", "staging", []string{"c1", "c2", "c3"}),
			}

			results, err := engine.ExecuteCherryPick(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[0].Message).To(ContainSubstring("1 commit(s) not applied"))
			Expect(drivers["api"].picks).To(HaveLen(1))
		})

		It("rejects targets without commits", func() {
			repo, _ := man.Repository("api")
			targets := []orchestrator.Target{{Repo: repo, Source: "develop", Branch: "staging"}}

			_, err := engine.ExecuteCherryPick(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).To(MatchError(ContainSubstring("has no commits")))
		})
	})

	Describe("fetching", func() {
		It("fetches every target's remote before operating", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "backend", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			_, err = engine.ExecuteMerge(ctx, targets, orchestrator.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(drivers["api"].fetches).To(Equal([]string{"origin"}))
			Expect(drivers["auth"].fetches).To(Equal([]string{"origin"}))
		})

		It("continues past a failing fetch", func() {
			drivers["api"].fetchErr = errors.New("remote unreachable")

			targets, err := orchestrator.BuildMergeTargets(reg, "backend", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for _, result := range results {
				Expect(result.Status).To(Equal(orchestrator.StatusSuccess))
			}
		})

		It("skips fetching when asked", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			_, err = engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(drivers["api"].fetches).To(BeEmpty())
		})
	})

	Describe("dry runs", func() {
		It("reports the plan without touching any working copy", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "backend", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{DryRun: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].Status).To(Equal(orchestrator.StatusSkipped))
			Expect(results[0].Message).To(Equal("would merge develop into staging"))
			Expect(drivers["api"].merges).To(BeEmpty())
			Expect(drivers["api"].fetches).To(BeEmpty())
			Expect(drivers["api"].stashCalls).To(BeZero())
		})
	})

	Describe("pull requests", func() {
		It("promotes a successful merge into the next stage", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{
				SkipFetch: true,
				CreatePR:  true,
				PRLabels:  []string{"promotion"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[0].PRURL).To(Equal("https://example.com/railyard/api/pull/1"))

			Expect(ghc.created).To(HaveLen(1))
			created := ghc.created[0]
			Expect(created.owner).To(Equal("railyard"))
			Expect(created.repo).To(Equal("api"))
			Expect(created.input.Head).To(Equal("staging"))
			Expect(created.input.Base).To(Equal("main"))
			Expect(created.input.Labels).To(Equal([]string{"promotion"}))
			Expect(created.input.Body).To(ContainSubstring("<!-- railyard-promotion: api staging -> main -->"))
		})

		It("targets the escalation branch back at the operated branch", func() {
			drivers["api"].mergeResult = git.MergeResult{Conflicts: []string{"handlers.go"}}
			drivers["api"].files = []git.ConflictedFile{{Path: "handlers.go", Ours: "o\n", Theirs: "t\n"}}
			prompter.selections = []string{"skip", "escalate"}

			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true, CreatePR: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusConflict))

			branch := results[0].Session.EscalationBranch
			Expect(branch).To(HavePrefix("escalation/api-staging"))
			Expect(drivers["api"].pushes).To(Equal([]pushCall{{remote: "origin", branch: branch}}))
			Expect(ghc.created).To(HaveLen(1))
			Expect(ghc.created[0].input.Head).To(Equal(branch))
			Expect(ghc.created[0].input.Base).To(Equal("staging"))
			Expect(ghc.created[0].input.Title).To(ContainSubstring("conflicts"))
		})

		It("reuses an existing open pull request", func() {
			ghc.existing = &gh.PullRequest{URL: "https://example.com/railyard/api/pull/9", Number: 9}

			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true, CreatePR: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].PRURL).To(Equal("https://example.com/railyard/api/pull/9"))
			Expect(ghc.created).To(BeEmpty())
		})

		It("skips repositories without a remote url", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "auth", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true, CreatePR: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[0].PRURL).To(BeEmpty())
			Expect(ghc.created).To(BeEmpty())
			Expect(ghc.finds).To(BeEmpty())
		})

		It("skips branches outside the promotion stages", func() {
			targets, err := orchestrator.BuildMergeTargets(reg, "api", "hotfix-1", "release-2.9")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true, CreatePR: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(ghc.created).To(BeEmpty())
		})

		It("skips creation when the base branch is missing on the remote", func() {
			ghc.ensureErr = gh.ErrBranchNotFound

			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true, CreatePR: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[0].Message).To(ContainSubstring("pr skipped"))
			Expect(ghc.created).To(BeEmpty())
		})

		It("never changes a result's status when creation fails", func() {
			ghc.createErr = errors.New("head branch deleted")

			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true, CreatePR: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[0].Message).To(ContainSubstring("pr failed"))
			Expect(results[0].PRURL).To(BeEmpty())
			Expect(ghc.createCalls).To(Equal(1))
		})

		It("retries a transient creation failure once", func() {
			ghc.createErrs = []error{gh.Retryable(errors.New("bad gateway"))}

			targets, err := orchestrator.BuildMergeTargets(reg, "api", "dev", "staging")
			Expect(err).NotTo(HaveOccurred())

			results, err := engine.ExecuteMerge(ctx, targets, orchestrator.Options{SkipFetch: true, CreatePR: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(orchestrator.StatusSuccess))
			Expect(results[0].PRURL).NotTo(BeEmpty())
			Expect(ghc.createCalls).To(Equal(2))
		})
	})
})

func mkdir(path string) error {
	return os.MkdirAll(path, 0o755)
}

type mergeCall struct {
	source string
	target string
}

type pushCall struct {
	remote string
	branch string
}

type fakeDriver struct {
	git.NoopDriver
	name string

	fetches  []string
	fetchErr error

	merges      []mergeCall
	mergeResult git.MergeResult
	mergeErr    error

	picks       [][]string
	pickResults []git.CherryPickResult
	pickErr     error

	stashed      bool
	stashCalls   int
	restoreCalls int

	files []git.ConflictedFile

	pushes  []pushCall
	pushErr error

	oursResolved   []string
	theirsResolved []string
	commits        []string
	continueCalled bool
	mergeAborted   bool
	escalations    []string
}

func (d *fakeDriver) Fetch(_ context.Context, remote string) error {
	d.fetches = append(d.fetches, remote)
	return d.fetchErr
}

func (d *fakeDriver) Merge(_ context.Context, source, target string) (git.MergeResult, error) {
	d.merges = append(d.merges, mergeCall{source: source, target: target})
	if d.mergeErr != nil {
		return git.MergeResult{}, d.mergeErr
	}
	return d.mergeResult, nil
}

func (d *fakeDriver) CherryPick(_ context.Context, commits []string, target string) (git.CherryPickResult, error) {
	d.picks = append(d.picks, append([]string(nil), commits...))
	if d.pickErr != nil {
		return git.CherryPickResult{}, d.pickErr
	}
	if len(d.pickResults) == 0 {
		return git.CherryPickResult{Success: true, Applied: commits}, nil
	}
	result := d.pickResults[0]
	d.pickResults = d.pickResults[1:]
	return result, nil
}

func (d *fakeDriver) Stash(context.Context) (bool, error) {
	d.stashCalls++
	return d.stashed, nil
}

func (d *fakeDriver) StashRestore(context.Context) error {
	d.restoreCalls++
	return nil
}

func (d *fakeDriver) ConflictedFiles(context.Context) ([]git.ConflictedFile, error) {
	return d.files, nil
}

func (d *fakeDriver) ResolveUseOurs(_ context.Context, path string) error {
	d.oursResolved = append(d.oursResolved, path)
	return nil
}

func (d *fakeDriver) ResolveUseTheirs(_ context.Context, path string) error {
	d.theirsResolved = append(d.theirsResolved, path)
	return nil
}

func (d *fakeDriver) StageAll(context.Context) error {
	return nil
}

func (d *fakeDriver) CommitResolution(_ context.Context, message string) (string, error) {
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

func (d *fakeDriver) CreateEscalationBranch(_ context.Context, prefix, label string) (string, error) {
	branch := prefix + "/" + label + "-1700000000"
	d.escalations = append(d.escalations, branch)
	return branch, nil
}

func (d *fakeDriver) Push(_ context.Context, remote, branch string) error {
	if d.pushErr != nil {
		return d.pushErr
	}
	d.pushes = append(d.pushes, pushCall{remote: remote, branch: branch})
	return nil
}

type fakePrompter struct {
	selections []string
	confirms   []bool
	inputs     []string
}

func (p *fakePrompter) Select(title string, options []prompt.Option) (string, error) {
	if len(p.selections) == 0 {
		return "", fmt.Errorf("unscripted select %q", title)
	}
	choice := p.selections[0]
	p.selections = p.selections[1:]
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

func (p *fakePrompter) Edit(title, _ string) (string, error) {
	return "", fmt.Errorf("unscripted edit %q", title)
}

func (p *fakePrompter) MultiSelect(title string, _ []prompt.Option) ([]string, error) {
	return nil, fmt.Errorf("unscripted multi-select %q", title)
}

func (p *fakePrompter) Show(string, string) {}

type createCall struct {
	owner string
	repo  string
	input gh.CreatePROptions
}

type findCall struct {
	head string
	base string
}

type fakeGHClient struct {
	created     []createCall
	createCalls int
	createErrs  []error
	createErr   error

	finds    []findCall
	existing *gh.PullRequest
	findErr  error

	ensured   []string
	ensureErr error
}

func (c *fakeGHClient) CreatePR(_ context.Context, owner, repo string, input gh.CreatePROptions) (gh.PullRequest, error) {
	c.createCalls++
	if len(c.createErrs) > 0 {
		err := c.createErrs[0]
		c.createErrs = c.createErrs[1:]
		return gh.PullRequest{}, err
	}
	if c.createErr != nil {
		return gh.PullRequest{}, c.createErr
	}
	c.created = append(c.created, createCall{owner: owner, repo: repo, input: input})
	return gh.PullRequest{
		URL:    fmt.Sprintf("https://example.com/%s/%s/pull/%d", owner, repo, len(c.created)),
		Number: len(c.created),
		Head:   input.Head,
		Base:   input.Base,
	}, nil
}

func (c *fakeGHClient) FindOpenPR(_ context.Context, owner, repo, head, base string) (*gh.PullRequest, error) {
	c.finds = append(c.finds, findCall{head: head, base: base})
	if c.findErr != nil {
		return nil, c.findErr
	}
	return c.existing, nil
}

func (c *fakeGHClient) EnsureBranchExists(_ context.Context, owner, repo, branch string) error {
	c.ensured = append(c.ensured, fmt.Sprintf("%s/%s:%s", owner, repo, branch))
	return c.ensureErr
}
