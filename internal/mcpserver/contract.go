package mcpserver

// UntitledFormatContract describes how untitled copies behave and what
// content LLM consumers should put in them.
const UntitledFormatContract = `# Scratch Untitled Copy Contract

An untitled copy is an in-memory draft with no file in the vault. It is
addressed by its key: "Untitled-N" for plain drafts, or the vault path it will
be saved to (e.g. "notes/plan.md") when created with an associated path.

## Lifecycle

1. **create_untitled** makes a copy. With content or an associated path it
   starts dirty; an empty plain draft starts clean.
2. **edit_untitled** replaces (default) or appends content. Clearing a plain
   draft makes it clean again; a copy with an associated path stays dirty.
3. Dirty copies are backed up automatically and come back after a restart.
4. **save_untitled** writes the content into the vault and closes the copy.
   The target defaults to the associated path; existing files are kept unless
   ` + "`" + `overwrite` + "`" + ` is true.
5. **revert_untitled** drops the copy and its backup.

## Content

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – otherwise the first heading or line
tags:                               # OPTIONAL – YAML list
  - tag-one
---

Body text in standard Markdown. Inline #tags are collected too.
` + "```" + `

## Rules

1. **Frontmatter is optional** but, when present, must be valid YAML between
   ` + "`" + `---` + "`" + ` fences at the very top. Invalid frontmatter blocks saving.
2. **Titles** come from frontmatter ` + "`" + `title` + "`" + `, else the first ` + "`" + `# ` + "`" + ` heading,
   else the first non-blank line, cut to 40 characters.
3. **Save paths** are vault-relative with forward slashes. A path without an
   extension gets ` + "`" + `.md` + "`" + `.
4. **Encoding** is UTF-8.
5. **Concurrency:** pass the ` + "`" + `checksum` + "`" + ` from read_untitled as ` + "`" + `if_match` + "`" + `
   to edit_untitled to avoid overwriting someone else's edit.

## Example

` + "```" + `markdown
---
title: Weekly standup 2025-01-20
tags:
  - meeting-notes
---

# Weekly standup 2025-01-20

- Alice to review the design doc
- Bob to update the roadmap #project-x
` + "```" + `
`
