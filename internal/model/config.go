package model

import (
	"strings"
	"time"
)

// Config holds all configuration for safeguard
type Config struct {
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Tiers       TierConfig        `yaml:"tiers" mapstructure:"tiers"`
	Evidence    EvidenceConfig    `yaml:"evidence" mapstructure:"evidence"`
	Search      SearchConfig      `yaml:"search" mapstructure:"search"`
	Decision    DecisionConfig    `yaml:"decision" mapstructure:"decision"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" mapstructure:"telemetry"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// CategoryRule is the pattern table entry for one hazard category
type CategoryRule struct {
	Category Category `yaml:"category" mapstructure:"category"`
	Weight   int      `yaml:"weight" mapstructure:"weight"`
	// Patterns match anywhere in the text
	Patterns []string `yaml:"patterns" mapstructure:"patterns"`
	// ContextualPatterns only count when a ContextPattern matches the same sentence
	ContextualPatterns []string `yaml:"contextual_patterns,omitempty" mapstructure:"contextual_patterns"`
	ContextPatterns    []string `yaml:"context_patterns,omitempty" mapstructure:"context_patterns"`
}

// RulesConfig configures the rule filter
type RulesConfig struct {
	Categories []CategoryRule `yaml:"categories" mapstructure:"categories"`
	MaxScore   int            `yaml:"max_score" mapstructure:"max_score"`
}

// TierDefinition maps domain suffixes to a tier and its confidence
type TierDefinition struct {
	Tier       Tier     `yaml:"tier" mapstructure:"tier"`
	Confidence int      `yaml:"confidence" mapstructure:"confidence"`
	Domains    []string `yaml:"domains" mapstructure:"domains"`
}

// TierConfig configures source credibility classification
type TierConfig struct {
	Tiers []TierDefinition `yaml:"tiers" mapstructure:"tiers"`
	// Generic applies when no configured domain matches (.edu, .gov, ...)
	Generic TierDefinition `yaml:"generic" mapstructure:"generic"`
	// Untrusted hosts are never tiered. Entries with a dot match as domain
	// suffixes (reddit.com); bare words match anywhere in the host (blog).
	Untrusted []string `yaml:"untrusted" mapstructure:"untrusted"`
}

// TierCaps limits how many sources of each tier are reported per claim
type TierCaps struct {
	Tier1 int `yaml:"tier1" mapstructure:"tier1"`
	Tier2 int `yaml:"tier2" mapstructure:"tier2"`
	Tier3 int `yaml:"tier3" mapstructure:"tier3"`
	Tier4 int `yaml:"tier4" mapstructure:"tier4"`
}

// For returns the cap for a tier (0 for untiered)
func (c TierCaps) For(t Tier) int {
	switch t {
	case Tier1:
		return c.Tier1
	case Tier2:
		return c.Tier2
	case Tier3:
		return c.Tier3
	case Tier4:
		return c.Tier4
	default:
		return 0
	}
}

// TierWeights weights source confidence when averaging
type TierWeights TierCaps

// For returns the weight of a tier (0 for untiered)
func (w TierWeights) For(t Tier) int {
	return TierCaps(w).For(t)
}

// EvidenceConfig configures claim extraction and evidence aggregation
type EvidenceConfig struct {
	Extractor        string      `yaml:"extractor" mapstructure:"extractor"` // heuristic or llm
	MaxClaims        int         `yaml:"max_claims" mapstructure:"max_claims"`
	MinClaimLength   int         `yaml:"min_claim_length" mapstructure:"min_claim_length"`
	MaxClaimLength   int         `yaml:"max_claim_length" mapstructure:"max_claim_length"`
	ClaimKeywords    []string    `yaml:"claim_keywords" mapstructure:"claim_keywords"`
	NegationPatterns []string    `yaml:"negation_patterns" mapstructure:"negation_patterns"`
	SkipOnHardBlock  bool        `yaml:"skip_on_hard_block" mapstructure:"skip_on_hard_block"`
	TierCaps         TierCaps    `yaml:"tier_caps" mapstructure:"tier_caps"`
	TierWeights      TierWeights `yaml:"tier_weights" mapstructure:"tier_weights"`
}

// GoogleConfig configures the Custom Search JSON API
type GoogleConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	APIKey       string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	CX           string `yaml:"cx,omitempty" mapstructure:"cx"`
	BackupAPIKey string `yaml:"backup_api_key,omitempty" mapstructure:"backup_api_key"`
	BackupCX     string `yaml:"backup_cx,omitempty" mapstructure:"backup_cx"`
}

// DuckDuckGoConfig configures the HTML fallback provider
type DuckDuckGoConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// SearchConfig configures evidence search providers
type SearchConfig struct {
	Primary           string           `yaml:"primary" mapstructure:"primary"`
	Fallback          string           `yaml:"fallback" mapstructure:"fallback"`
	Timeout           time.Duration    `yaml:"timeout" mapstructure:"timeout"`
	ResultsPerQuery   int              `yaml:"results_per_query" mapstructure:"results_per_query"`
	RequestsPerSecond float64          `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int              `yaml:"burst" mapstructure:"burst"`
	CacheTTL          time.Duration    `yaml:"cache_ttl" mapstructure:"cache_ttl"` // 0 disables caching
	CacheDir          string           `yaml:"cache_dir,omitempty" mapstructure:"cache_dir"`
	Google            GoogleConfig     `yaml:"google" mapstructure:"google"`
	DuckDuckGo        DuckDuckGoConfig `yaml:"duckduckgo" mapstructure:"duckduckgo"`
}

// ClaimRisk is the per-claim risk used to weigh mixed evidence
type ClaimRisk struct {
	StrongSupport int `yaml:"strong_support" mapstructure:"strong_support"`
	WeakSupport   int `yaml:"weak_support" mapstructure:"weak_support"`
	NoEvidence    int `yaml:"no_evidence" mapstructure:"no_evidence"`
	Contradicted  int `yaml:"contradicted" mapstructure:"contradicted"`
}

// For returns the configured risk for a status
func (r ClaimRisk) For(s EvidenceStatus) int {
	switch s {
	case StatusStrongSupport:
		return r.StrongSupport
	case StatusWeakSupport:
		return r.WeakSupport
	case StatusContradicted:
		return r.Contradicted
	default:
		return r.NoEvidence
	}
}

// DecisionConfig configures the decision engine
type DecisionConfig struct {
	RequiredContext []string  `yaml:"required_context" mapstructure:"required_context"`
	ClaimRisk       ClaimRisk `yaml:"claim_risk" mapstructure:"claim_risk"`
}

// ProviderConfig configures one LLM role
type ProviderConfig struct {
	Provider       string        `yaml:"provider" mapstructure:"provider"` // openai, groq, gemini, anthropic, ollama ("" disables)
	Model          string        `yaml:"model" mapstructure:"model"`
	APIKey         string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens      int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float32       `yaml:"temperature" mapstructure:"temperature"`
	SystemPrompt   string        `yaml:"system_prompt,omitempty" mapstructure:"system_prompt"`
	StrictEvidence bool          `yaml:"strict_evidence" mapstructure:"strict_evidence"`
}

// Enabled reports whether a provider is configured for this role
func (p ProviderConfig) Enabled() bool {
	return p.Provider != ""
}

// LLMConfig holds the LLM roles
type LLMConfig struct {
	Explainer ProviderConfig `yaml:"explainer" mapstructure:"explainer"`
	Chat      ProviderConfig `yaml:"chat" mapstructure:"chat"`
	Extractor ProviderConfig `yaml:"extractor" mapstructure:"extractor"`
}

// ConcurrencyConfig holds concurrency settings
type ConcurrencyConfig struct {
	ClaimWorkers int `yaml:"claim_workers" mapstructure:"claim_workers"`
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"`
}

// HTTPConfig holds outbound HTTP client settings
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure    bool   `yaml:"insecure" mapstructure:"insecure"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// OutputConfig holds report output settings
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	NoColor bool   `yaml:"no_color" mapstructure:"no_color"`
}

// Version is the application version reported by the CLI and /health
const Version = "2.0.0"

// ServiceName identifies the service in health checks and telemetry
const ServiceName = "SAFEGUARD-Health Backend"

var drugNames = []string{
	"insulin", "antibiotics?", "amoxicillin", "penicillin", "ibuprofen",
	"paracetamol", "acetaminophen", "aspirin", "metformin", "prednisone",
	"steroids?", "opioids?", "oxycodone", "morphine", "codeine", "warfarin",
	"lisinopril", "statins?", "antidepressants?", "sertraline", "fluoxetine",
	"benzodiazepines?", "xanax", "valium", "tramadol", "azithromycin",
	"ciprofloxacin", "doxycycline",
}

var diseaseNames = []string{
	"cancer", "diabetes", "heart disease", "stroke", "infection", "pneumonia",
	"covid(?:-19)?", "influenza", "flu", "hypertension", "depression", "asthma",
	"tumou?r", "leukemia", "hiv", "hepatitis", "tuberculosis", "appendicitis",
	"dementia", "alzheimer'?s",
}

func alternation(words []string) string {
	return "(?:" + strings.Join(words, "|") + ")"
}

// DefaultRules returns the built-in hazard pattern table
func DefaultRules() RulesConfig {
	drugs := alternation(drugNames)
	diseases := alternation(diseaseNames)
	medicationWords := `\b(?:take|taking|dose|doses|dosage|tablets?|pills?|capsules?|medicine|medication|drug|syrup|inject|injection|` + strings.Join(drugNames, "|") + `)\b`

	return RulesConfig{
		MaxScore: 100,
		Categories: []CategoryRule{
			{
				Category: CategoryDosage,
				Weight:   40,
				Patterns: []string{
					`\b\d+(?:\.\d+)?\s*(?:mg|mcg|µg|ug|ml|iu|units?|tablets?|pills?|capsules?|drops|puffs|teaspoons?|tsp|tablespoons?|tbsp)\b`,
				},
				ContextualPatterns: []string{
					`\b\d+(?:\.\d+)?\s*(?:g|grams?|l|liters?|litres?|cc)\b`,
					`\b(?:once|twice|three times|\d+\s*times)\s+(?:a|per)\s+day\b`,
					`\bevery\s+\d+\s*(?:hours?|hrs?)\b`,
				},
				ContextPatterns: []string{medicationWords},
			},
			{
				Category: CategoryDiagnosis,
				Weight:   35,
				Patterns: []string{
					`\byou (?:definitely |certainly |probably |most likely |clearly )?have (?:a |an )?` + diseases + `\b`,
					`\b(?:diagnosed with|this is|appears to be|sounds like|you are suffering from) (?:a |an )?` + diseases + `\b`,
				},
			},
			{
				Category: CategoryTreatment,
				Weight:   20,
				Patterns: []string{
					`\b(?:take|use|apply|consume|inject|administer|try)\s+(?:this|these|the|that)\s+(?:medicine|medication|drug|treatment|remedy|supplement|pills?)\b`,
				},
			},
			{
				Category: CategoryPrescription,
				Weight:   40,
				Patterns: []string{
					`\b(?:take|taking|start|begin|inject|use|stop|increase|double|switch to|try)\s+(?:\S+\s+){0,2}` + drugs + `\b`,
					`\bi (?:would |will )?prescribe\b`,
				},
			},
			{
				Category: CategoryEmergency,
				Weight:   30,
				Patterns: []string{
					`\b(?:chest pain|difficulty breathing|shortness of breath|stroke|seizures?|unconscious|severe bleeding|heart attack|anaphylaxis|overdose|suicid\w*|call 911|emergency room|urgent care|immediate medical attention|life-threatening|slurred speech)\b`,
				},
			},
			{
				Category: CategoryMedication,
				Weight:   10,
				Patterns: []string{
					`\b(?:medicines?|medications?|doses?|dosage|tablets?|pills?|capsules?|syrup|injections?)\b`,
					`\b` + drugs + `\b`,
				},
			},
			{
				Category: CategoryMedicalClaim,
				Weight:   5,
				Patterns: []string{
					`\b(?:cure[sd]?|curing|treat|treats|treated|treating|treatment|diagnose[sd]?|symptoms?|disease|condition|medication|doctor|patients?|health)\b`,
				},
			},
		},
	}
}

// DefaultTiers returns the built-in source credibility table
func DefaultTiers() TierConfig {
	return TierConfig{
		Tiers: []TierDefinition{
			{Tier: Tier1, Confidence: 100, Domains: []string{
				"mohfw.gov.in", "nhm.gov.in", "icmr.gov.in", "who.int", "cdc.gov",
				"nih.gov", "fda.gov", "nhs.uk", "health.gov.au",
			}},
			{Tier: Tier2, Confidence: 85, Domains: []string{
				"pubmed.ncbi.nlm.nih.gov", "ncbi.nlm.nih.gov", "mayoclinic.org",
				"hopkinsmedicine.org", "clevelandclinic.org", "nejm.org",
				"thelancet.com", "bmj.com", "jama.jamanetwork.com", "cochrane.org",
			}},
			{Tier: Tier3, Confidence: 70, Domains: []string{
				"medlineplus.gov", "webmd.com", "healthline.com",
				"medicalnewstoday.com", "health.harvard.edu",
			}},
		},
		Generic: TierDefinition{Tier: Tier4, Confidence: 60, Domains: []string{
			"edu", "gov", "ac.uk", "gov.uk", "gov.in", "gov.au", "nic.in",
		}},
		Untrusted: []string{"blog", "forum", "facebook.com", "twitter.com", "x.com", "reddit.com", "quora.com"},
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Rules: DefaultRules(),
		Tiers: DefaultTiers(),
		Evidence: EvidenceConfig{
			Extractor:      "heuristic",
			MaxClaims:      3,
			MinClaimLength: 10,
			MaxClaimLength: 300,
			ClaimKeywords: []string{
				"cure", "cures", "treat", "treats", "prevent", "prevents", "cause", "causes",
				"help", "helps", "reduce", "reduces", "increase", "increases",
				"improve", "improves", "contain", "contains", "boost", "boosts",
				"heal", "heals", "protect", "protects", "lower", "lowers", "kill", "kills",
			},
			NegationPatterns: []string{
				`\bmyths?\b`, `\bfalse\b`, `\bhoax\b`, `\bdebunk\w*`, `\bmisinformation\b`,
				`\bno (?:scientific )?evidence\b`, `\bnot (?:proven|effective|safe)\b`,
				`\bdoes not (?:cure|prevent|treat)\b`, `\bdoesn't (?:cure|prevent|treat)\b`,
				`\bfact[- ]check\w*`, `\bunproven\b`, `\bwarns? against\b`, `\bdangerous\b`,
			},
			SkipOnHardBlock: true,
			TierCaps:        TierCaps{Tier1: 3, Tier2: 2, Tier3: 2, Tier4: 2},
			TierWeights:     TierWeights{Tier1: 4, Tier2: 3, Tier3: 2, Tier4: 1},
		},
		Search: SearchConfig{
			Primary:           "google",
			Fallback:          "duckduckgo",
			Timeout:           5 * time.Second,
			ResultsPerQuery:   10,
			RequestsPerSecond: 5,
			Burst:             5,
			Google: GoogleConfig{
				BaseURL: "https://www.googleapis.com/customsearch/v1",
			},
			DuckDuckGo: DuckDuckGoConfig{
				BaseURL: "https://html.duckduckgo.com/html/",
			},
		},
		Decision: DecisionConfig{
			RequiredContext: []string{"age", "symptoms", "timeframe"},
			ClaimRisk: ClaimRisk{
				StrongSupport: 0,
				WeakSupport:   35,
				NoEvidence:    60,
				Contradicted:  100,
			},
		},
		LLM: LLMConfig{
			Explainer: ProviderConfig{
				Provider:       "gemini",
				Model:          "gemini-1.5-flash",
				Timeout:        10 * time.Second,
				MaxTokens:      256,
				Temperature:    0.3,
				StrictEvidence: true,
			},
			Chat: ProviderConfig{
				Provider:     "groq",
				Model:        "llama-3.3-70b-versatile",
				Timeout:      30 * time.Second,
				MaxTokens:    1024,
				Temperature:  0.7,
				SystemPrompt: "You are a helpful AI assistant answering health-related questions. Be informative and helpful.",
			},
			Extractor: ProviderConfig{
				Timeout:     10 * time.Second,
				MaxTokens:   512,
				Temperature: 0,
			},
		},
		Concurrency: ConcurrencyConfig{
			ClaimWorkers: 3,
			BatchWorkers: 4,
		},
		HTTP: HTTPConfig{
			Timeout:      10 * time.Second,
			UserAgent:    "Mozilla/5.0 (compatible; Safeguard/2.0)",
			MaxBodyBytes: 2_000_000,
		},
		Server: ServerConfig{
			Addr:           ":3000",
			AllowedOrigins: []string{"*"},
			MaxBodyBytes:   1 << 20,
			RequestTimeout: 60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "safeguard",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Dir: "results",
		},
	}
}
