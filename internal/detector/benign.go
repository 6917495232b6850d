package detector

import "regexp"

// Benign-context categories. A benign hit discounts a signature match; a
// malicious-override hit discards the discount again.
const (
	BenignSysadmin  = "sysadmin"
	BenignEducation = "education"
	BenignNarrative = "narrative"
	BenignIdiom     = "idiom"
)

type benignPattern struct {
	name     string
	category string
	pattern  *regexp.Regexp
}

var benignPatterns = []benignPattern{
	// Operational / sysadmin vocabulary. "kill the process", "attack vector"
	// and friends are everyday technical speech.
	{"kill_process", BenignSysadmin, regexp.MustCompile(`(?i)\b(kill(ing)?|terminate|stop)\s+(the\s+|a\s+|that\s+|this\s+|my\s+)?(process(es)?|service|daemon|container|pod|job|task|session|thread|query|connection)\b`)},
	{"kill_port", BenignSysadmin, regexp.MustCompile(`(?i)\bkill\s+.{0,30}\b(port|pid)\s*\d+`)},
	{"hack_together", BenignSysadmin, regexp.MustCompile(`(?i)\bhack\s+(together|up|around|a\s+quick|something\s+quick)\b`)},
	{"attack_surface", BenignSysadmin, regexp.MustCompile(`(?i)\b(attack\s+(surface|vector)|threat\s+model|penetration\s+test(ing)?|pentest|red\s+team(ing)?|vulnerability\s+(scan|assessment))\b`)},
	{"security_hardening", BenignSysadmin, regexp.MustCompile(`(?i)\b(harden(ing)?|patch(ing)?|secure|protect|defend(ing)?)\s+(the\s+|our\s+|my\s+)?(server|system|network|application|infrastructure|cluster)\b`)},
	{"inject_dependency", BenignSysadmin, regexp.MustCompile(`(?i)\b(dependency|constructor|code)\s+injection\s+(pattern|framework|container)\b`)},

	// Academic / defensive explanation framing.
	{"explain_how", BenignEducation, regexp.MustCompile(`(?i)\b(explain|understand(ing)?|learn(ing)?\s+about|what\s+is|how\s+do(es)?)\s+.{0,40}\b(work|mean|happen|function)`)},
	{"for_a_class", BenignEducation, regexp.MustCompile(`(?i)\b(for\s+(my|a|our)\s+(class|course|thesis|dissertation|homework|research\s+paper|security\s+course)|studying\s+for)\b`)},
	{"history_of", BenignEducation, regexp.MustCompile(`(?i)\b(history|chemistry|physics|biology|psychology)\s+of\b`)},
	{"defend_against", BenignEducation, regexp.MustCompile(`(?i)\b(defend|protect|guard)\s+against|how\s+to\s+(detect|prevent|mitigate|recognize)\b`)},

	// Fiction and storytelling with an identified craft purpose.
	{"novel_scene", BenignNarrative, regexp.MustCompile(`(?i)\b(in\s+(my|the)\s+(novel|story|screenplay|book|manuscript)|writing\s+a\s+(mystery|thriller|crime)\s+(novel|story))\b`)},
	{"character_who", BenignNarrative, regexp.MustCompile(`(?i)\b(a\s+character\s+(who|that)|my\s+(protagonist|antagonist|villain))\b`)},
	{"plot_device", BenignNarrative, regexp.MustCompile(`(?i)\b(plot\s+(device|point|twist)|narrative\s+arc|story\s+beat)\b`)},

	// Figures of speech.
	{"killing_it", BenignIdiom, regexp.MustCompile(`(?i)\b(killing\s+it|killed\s+it|dressed\s+to\s+kill|kill\s+(some\s+)?time|time\s+to\s+kill|make\s+a\s+killing)\b`)},
	{"bombed", BenignIdiom, regexp.MustCompile(`(?i)\b(bombed\s+(the|my|that)\s+(test|exam|interview|presentation)|photo\s*bomb|the\s+bomb\b)`)},
	{"shoot_me", BenignIdiom, regexp.MustCompile(`(?i)\b(shoot\s+me\s+(an?\s+)?(email|message|text)|shooting\s+the\s+breeze|long\s+shot)\b`)},
	{"steal_the_show", BenignIdiom, regexp.MustCompile(`(?i)\b(steal\s+the\s+(show|spotlight)|stole\s+my\s+heart|steal\s+a\s+glance)\b`)},
}

// overrideIndicators defeat benign discounting. Harm directed at people,
// evasion phrasing, and crime vocabulary keep a match at full confidence no
// matter how the request is dressed up.
var overrideIndicators = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"victim_reference", regexp.MustCompile(`(?i)\b(kill|hurt|harm|poison|attack|murder|assault|stalk|kidnap)\s+(my|your|his|her|their)?\s*(neighbou?r|wife|husband|spouse|boss|coworker|ex\b|girlfriend|boyfriend|teacher|classmate|family|parents?|child(ren)?|person|people|someone|somebody)`)},
	{"evasion_phrasing", regexp.MustCompile(`(?i)\b(without\s+(getting\s+caught|being\s+(caught|detected|traced|noticed))|leave\s+no\s+(trace|evidence)|untraceab(le|ly)|can'?t\s+be\s+traced|avoid\s+(detection|the\s+police|forensics))\b`)},
	{"financial_crime", regexp.MustCompile(`(?i)\b(launder(ing)?\s+money|money\s+laundering|counterfeit\s+(money|currency|bills)|insider\s+trading|ponzi\s+scheme|tax\s+(fraud|evasion))\b`)},
	{"cyber_crime", regexp.MustCompile(`(?i)\b(steal\s+(credit\s+card|bank|identity|credentials)|drain\s+(a|the|their)\s+(bank\s+)?account|sell\s+.{0,20}on\s+the\s+dark\s*web|ransom(ware)?\s+(deploy|attack|payment))\b`)},
	{"real_world_intent", regexp.MustCompile(`(?i)\b(for\s+real|actually\s+do\s+it|in\s+real\s+life|not\s+(hypothetical(ly)?|fiction(al)?)|i('?m|\s+am)\s+(actually|really)\s+going\s+to)\b`)},
}

// questionFraming recognizes text posed as a question about a topic rather
// than a request to perform it. Question framing deepens a benign discount.
var questionFraming = regexp.MustCompile(`(?i)^\s*(what|why|how\s+do(es)?|when|where|who|is\s+it|are\s+there|can\s+you\s+explain|could\s+you\s+explain)\b.*\?\s*$`)
