package stages

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/llm"
	"github.com/TobiSchelling/ContentForge/internal/quality"
	"github.com/TobiSchelling/ContentForge/internal/queue"
	"github.com/TobiSchelling/ContentForge/internal/router"
)

const humanizePrompt = `Rewrite this article so it reads like a person wrote it, keeping every fact, heading and link intact.

Voice for %s: %s
%s
Vary sentence length hard: mix short punchy sentences with long winding ones. Cut filler transitions. Keep contractions. Use only plain hyphens, never em or en dashes.

Article:
%s

Respond with ONLY the rewritten markdown article, no commentary.`

// voiceTones and voicePersonas combine into a per-domain voice seed. The
// seed is derived from the domain name, persisted on first use, and reused
// for every later article so a domain's writing stays consistent.
var voiceTones = []string{
	"plainspoken and a little dry",
	"warm but skeptical of hype",
	"brisk and opinionated",
	"patient and detail-obsessed",
	"conversational with occasional humor",
	"matter-of-fact, numbers first",
}

var voicePersonas = []string{
	"a practitioner who has made every mistake in this niche personally",
	"a careful researcher who cites what they can verify",
	"a friend who has already done the comparison shopping",
	"an editor who cuts every sentence that earns nothing",
	"a hobbyist who got serious about testing claims",
}

// deriveVoiceSeed builds a stable voice descriptor for a domain.
func deriveVoiceSeed(domain *database.Domain) string {
	h := fnv.New64a()
	h.Write([]byte(domain.Name))
	h.Write([]byte(domain.Niche))
	sum := h.Sum64()

	tone := voiceTones[sum%uint64(len(voiceTones))]
	persona := voicePersonas[(sum/uint64(len(voiceTones)))%uint64(len(voicePersonas))]
	return fmt.Sprintf("%s, writing as %s", tone, persona)
}

// Humanize rewrites the draft in the domain's voice, creating and
// persisting the voice seed on first use. Banned-pattern violations in the
// current body become a targeted instruction; the gates run again on the
// rewrite.
func (d *Deps) Humanize(ctx context.Context, job *database.Job) (*queue.Result, error) {
	article, err := d.loadArticle(job)
	if err != nil {
		return nil, err
	}
	domain, err := d.loadDomain(job.DomainID)
	if err != nil {
		return nil, err
	}
	if article.Body == nil || *article.Body == "" {
		return nil, fmt.Errorf("article %d has no draft body", article.ID)
	}

	seed := ""
	if domain.VoiceSeed != nil {
		seed = *domain.VoiceSeed
	}
	if seed == "" {
		seed = deriveVoiceSeed(domain)
		if err := d.DB.SetVoiceSeed(domain.ID, seed); err != nil {
			return nil, err
		}
	}

	targeted := ""
	if instruction := quality.RewriteInstruction(quality.ScanBanned(*article.Body)); instruction != "" {
		targeted = instruction + "\n"
	}

	before := takeSnapshot(article)
	result, err := d.Client.Generate(ctx,
		fmt.Sprintf(humanizePrompt, domain.Name, seed, targeted, *article.Body),
		llm.Options{Task: router.TaskHumanize, ArticleID: &article.ID},
	)
	if err != nil {
		return nil, err
	}

	body := quality.SanitizeDashes(result.Content)
	contentType := TypeGuide
	if article.ContentType != nil {
		contentType = *article.ContentType
	}
	wordCount, err := d.checkGates(article, contentType, body)
	if err != nil {
		return nil, err
	}

	if err := d.persistBody(article.ID, body, wordCount); err != nil {
		return nil, err
	}
	if err := d.recordRevision(article.ID, "humanize", before); err != nil {
		return nil, err
	}

	return succeed(job, fmt.Sprintf("humanized: %d words", wordCount), result.Cost), nil
}
