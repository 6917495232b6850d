package detector

import "regexp"

// Attack categories in priority order. The first category with a hit sets
// the primary category of a pattern detection.
const (
	CategoryJailbreak      = "jailbreak"
	CategoryInjection      = "injection"
	CategoryHarmfulRequest = "harmful_request"
	CategoryManipulation   = "manipulation"
	CategoryScopeViolation = "scope_violation"
)

// signature is one compiled attack signature.
type signature struct {
	name    string
	pattern *regexp.Regexp
}

// signatureGroup is all signatures for one category.
type signatureGroup struct {
	category   string
	signatures []signature
}

// attackSignatures is loaded once at process start and treated as immutable.
var attackSignatures = []signatureGroup{
	{
		category: CategoryJailbreak,
		signatures: []signature{
			{"ignore_previous_instructions", regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|rules|directives)`)},
			{"do_anything_now", regexp.MustCompile(`(?i)\b(do\s+anything\s+now|act\s+as\s+dan|you\s+are\s+dan\b)`)},
			{"no_restrictions", regexp.MustCompile(`(?i)\b(no\s+(restrictions|limitations|filters|safety\s+rules)|without\s+(any\s+)?(restrictions|limits|filters))\b`)},
			{"uncensored_persona", regexp.MustCompile(`(?i)\b(uncensored|unfiltered|unrestricted)\s+(ai|assistant|model|version|mode)\b`)},
			{"developer_mode", regexp.MustCompile(`(?i)\b(developer|debug|god|sudo)\s+mode\b`)},
			{"amoral_persona", regexp.MustCompile(`(?i)(completely\s+)?amoral\s+(ai|assistant|model|bot)`)},
			{"no_longer_bound", regexp.MustCompile(`(?i)you\s+are\s+no\s+longer\s+(bound\s+by|subject\s+to|constrained\s+by)`)},
			{"free_of_restrictions", regexp.MustCompile(`(?i)free\s+of\s+all\s+(restrictions|filters|rules|limits)`)},
			{"never_refuse", regexp.MustCompile(`(?i)(will\s+never|must\s+not|cannot)\s+refuse\s+(a\s+request|to\s+answer|any)`)},
			{"bypass_safety", regexp.MustCompile(`(?i)bypass\s+(your\s+)?(safety|content|moderation)\s*(guidelines|filters|policies)?`)},
		},
	},
	{
		category: CategoryInjection,
		signatures: []signature{
			{"system_prompt_extraction", regexp.MustCompile(`(?i)(repeat|output|print|show|reveal)\s+(everything|all|the\s+(text|words))\s+(above|before|preceding)`)},
			{"reveal_instructions", regexp.MustCompile(`(?i)(what\s+(is|are)|show\s+me|tell\s+me|reveal)\s+(your|the)\s+(original\s+|initial\s+|hidden\s+|system\s+)?(instructions|prompt|rules|guidelines)`)},
			{"embedded_system_tag", regexp.MustCompile(`(?i)\[(system|admin)\s*:\s*(override|ignore|bypass|enable|disable)`)},
			{"hidden_instruction", regexp.MustCompile(`(?i)(<(important|hidden)>|\[hidden\]|hidden\s+instruction\s*:)`)},
			{"secrecy_instruction", regexp.MustCompile(`(?i)(do\s+not\s+(tell|mention\s+this\s+to)|don'?t\s+tell)\s+the\s+user`)},
			{"encode_instructions", regexp.MustCompile(`(?i)(encode|convert|translate)\s+.{0,40}instructions.{0,20}(base64|hex|rot13|binary)`)},
			{"comment_injection", regexp.MustCompile(`(?i)(#|//|/\*)\s*(ignore|bypass|override)\s+(all\s+)?(previous\s+)?instructions?`)},
			{"sql_injection", regexp.MustCompile(`(?i)(union\s+select|or\s+1\s*=\s*1|drop\s+table|information_schema|xp_cmdshell)`)},
			{"command_injection", regexp.MustCompile(`(?i)(rm\s+-[rR]f\s+/|chmod\s+777|curl\s+http\S*\s*\|\s*(ba)?sh|bash\s+-c|powershell\s+-command)`)},
			{"markdown_exfil", regexp.MustCompile(`!\[[^\]]*\]\(https?://[^)]*\?[^)]*=`)},
		},
	},
	{
		category: CategoryHarmfulRequest,
		signatures: []signature{
			{"weapon_construction", regexp.MustCompile(`(?i)(how\s+to\s+|instructions\s+(for|to)\s+)?(make|build|construct|assemble)\s+(a\s+|an\s+)?(bomb|explosive|pipe\s+bomb|weapon|silencer|ghost\s+gun)`)},
			{"drug_synthesis", regexp.MustCompile(`(?i)(synthesize|synthesis\s+of|cook|manufacture|produce)\s+(meth(amphetamine)?|fentanyl|mdma|lsd|heroin)`)},
			{"violence_against_person", regexp.MustCompile(`(?i)\b(kill|murder|hurt|harm|poison|strangle|assault)\s+(my|your|his|her|their|that|this|a|an|the)\s+\w+`)},
			{"toxin_recipe", regexp.MustCompile(`(?i)(make|create|extract|brew)\s+(a\s+)?(poison|toxin|nerve\s+agent|ricin|sarin)`)},
			{"malware_creation", regexp.MustCompile(`(?i)(write|create|build|generate)\s+(a\s+)?(malware|ransomware|keylogger|botnet|rootkit|computer\s+virus)`)},
			{"unauthorized_access", regexp.MustCompile(`(?i)(hack|break)\s+into\s+(a\s+|an\s+|the\s+|my\s+|someone)`)},
			{"credential_theft", regexp.MustCompile(`(?i)(steal|harvest|phish)\s+(passwords?|credentials|credit\s+card|bank\s+details)`)},
			{"self_harm_instructions", regexp.MustCompile(`(?i)(best|painless|effective)\s+(way|method)s?\s+to\s+(kill\s+myself|end\s+my\s+life|self.?harm)`)},
		},
	},
	{
		category: CategoryManipulation,
		signatures: []signature{
			{"false_authority", regexp.MustCompile(`(?i)i\s+am\s+(an?\s+)?(anthropic|openai|google|meta)\s+(employee|engineer|researcher|developer)`)},
			{"authorized_claim", regexp.MustCompile(`(?i)(i\s+am\s+|i'?m\s+)?authorized\s+to\s+(test|access|view|override)`)},
			{"urgency_pressure", regexp.MustCompile(`(?i)(this\s+is\s+urgent|immediately\s+or|right\s+now\s+or|you\s+must\s+comply|lives\s+(are|depend)\s+(at\s+stake|on))`)},
			{"manager_pretext", regexp.MustCompile(`(?i)(your|the)\s+(manager|supervisor|administrator|creator)\s+(said|told|ordered|instructed|requires)`)},
			{"token_coercion", regexp.MustCompile(`(?i)(lose|deduct(ed)?)\s+\w*\s*tokens?\s+(if|when|unless)`)},
			{"guilt_coercion", regexp.MustCompile(`(?i)(if\s+you\s+(really\s+)?cared|a\s+good\s+assistant\s+would|you'?re\s+useless\s+unless)`)},
		},
	},
	{
		category: CategoryScopeViolation,
		signatures: []signature{
			{"admin_escalation", regexp.MustCompile(`(?i)act\s+as\s+(an?\s+)?(admin(istrator)?|root|superuser)\s+with\s+(full|unrestricted)`)},
			{"override_safety", regexp.MustCompile(`(?i)override\s+(all\s+)?(safety|security|content)\s+(checks|policies|systems|protocols)`)},
			{"funds_transfer", regexp.MustCompile(`(?i)(transfer|wire|send)\s+(all\s+)?(the\s+)?(funds|money|crypto(currency)?|bitcoin)\s+to`)},
			{"external_exfil", regexp.MustCompile(`(?i)(send|post|upload|exfiltrate)\s+(all\s+)?(conversation|chat)?\s*(history|data|logs|contents)\s+to\s+(this|an?\s+external)`)},
			{"tool_abuse", regexp.MustCompile(`(?i)(silently|secretly|in\s+the\s+background)\s+(log|send|copy|read|execute)`)},
			{"read_sensitive_files", regexp.MustCompile(`(?i)(cat|read|open|print)\s+\S*(/etc/shadow|/etc/passwd|\.ssh/id_(rsa|ed25519)|\.aws/credentials|\.env\b)`)},
		},
	},
}
