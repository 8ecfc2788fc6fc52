package tools

// AllTools contains all tool specifications for the uploader MCP server.
// Tool descriptions follow a structured format for LLM tool selection:
// - USE WHEN: Natural language triggers
// - NOT FOR: Disambiguation from similar tools
// - PARAMETERS: Key arguments with defaults
// - RETURNS: What the tool returns
var AllTools = []ToolSpec{
	// ==========================================================================
	// WRITE TOOLS
	// ==========================================================================
	{
		Name:     "wiki_upload_pages",
		Method:   "UploadPages",
		Title:    "Upload Template Pages",
		Category: "write",
		Description: `Create or update a list of wiki pages, one at a time, as a bot edit.

USE WHEN: User says "publish these templates", "sync the template pages", "create or update pages X and Y".

NOT FOR: Uploading binary files.

PARAMETERS:
- pages: List of {id, body} records; id is the full page title (required)
- dry_run: Only check existence and report what would happen (default false)
- summary: Edit summary; %s is replaced by the title (default "Bot created/updated page: %s")

RETURNS: Counts of created and updated pages and the titles processed.

NOTE: Requires a logged-in bot account. Without one nothing is written and logged_in is false. Pages are paced several seconds apart.`,
		ReadOnly:    false,
		Destructive: true,
		Idempotent:  true,
		OpenWorld:   true,
	},

	// ==========================================================================
	// INSPECT TOOLS
	// ==========================================================================
	{
		Name:     "wiki_check_tokens",
		Method:   "CheckTokens",
		Title:    "Check Token Access",
		Category: "inspect",
		Description: `Check which API tokens the bot account may obtain.

USE WHEN: User asks "can the bot patrol", "does the account have rollback", or an edit fails with a permission error.

PARAMETERS:
- types: Token types such as csrf, patrol, rollback, watch (required). Legacy names like edit or move count as csrf.

RETURNS: One entry per requested type with availability and the reason when unavailable. Token values are never returned.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "wiki_parse_chunk_size",
		Method:   "ParseChunkSize",
		Title:    "Parse Chunk Size",
		Category: "inspect",
		Description: `Convert a chunk size option to bytes.

USE WHEN: User asks "how big is a 4mi chunk", "what does -chunked:500k mean".

PARAMETERS:
- option: Either the full "-chunked:4mi" form or just the size "4mi" (required). Units: k (1000), m (1000000), ki (1024), mi (1048576). Empty size means 1 MiB.

RETURNS: The byte count, or valid=false for malformed options.`,
		ReadOnly:   true,
		Idempotent: true,
	},
	{
		Name:     "wiki_check_ip",
		Method:   "CheckIP",
		Title:    "Check IP Address",
		Category: "inspect",
		Description: `Check whether a user name is a bare IPv4 or IPv6 address.

USE WHEN: User asks "is this an anonymous editor", "is 2001:db8::1 an IP".

PARAMETERS:
- value: Text to check (required)

RETURNS: is_ip true for IP literals, which MediaWiki uses as the name of anonymous users.`,
		ReadOnly:   true,
		Idempotent: true,
	},
}
