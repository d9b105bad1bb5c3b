package pattern

// PIISpecs returns the built-in PII detection set: email, phone, SSN and
// card numbers. Card candidates are gated by the Luhn checksum.
func PIISpecs() []Spec {
	return []Spec{
		{
			Kind:    KindEmail,
			Label:   "EMAIL",
			Pattern: `(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`,
		},
		{
			Kind:    KindPhone,
			Label:   "PHONE",
			Pattern: `\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`,
		},
		{
			Kind:    KindSSN,
			Label:   "SSN",
			Pattern: `\b\d{3}-\d{2}-\d{4}\b`,
		},
		{
			Kind:     KindCard,
			Label:    "CARD",
			Pattern:  `\b(?:\d{4}[-\s]?){3}\d{4}\b`,
			Validate: Luhn,
		},
	}
}

// InjectionSpecs returns the fixed catalogue of suspicious phrase
// families: instruction-override language, system-prompt-extraction
// language, policy-bypass language and markup/SQL payload fragments.
func InjectionSpecs() []Spec {
	return []Spec{
		{
			Kind:    KindIgnoreInstruction,
			Label:   "INJECTION",
			Pattern: `(?i)\bignore\s+(?:all\s+)?(?:previous|prior)\s+instructions\b`,
		},
		{
			Kind:    KindDisregardAll,
			Label:   "INJECTION",
			Pattern: `(?i)\bdisregard\s+(?:all|previous|everything)\b`,
		},
		{
			Kind:    KindSystemPromptExtraction,
			Label:   "INJECTION",
			Pattern: `(?i)\b(?:reveal|show|print|repeat|expose|leak)\b[^.!?\n]{0,40}\bsystem\s+prompt\b`,
		},
		{
			Kind:    KindExfiltration,
			Label:   "INJECTION",
			Pattern: `(?i)\bexfiltrat(?:e|es|ed|ion|ing)\b`,
		},
		{
			Kind:    KindSafetyBypass,
			Label:   "INJECTION",
			Pattern: `(?i)\b(?:ignore|disregard|bypass|override|disable)\b[^.!?\n]{0,30}\b(?:safety|security|guardrails?)\b`,
		},
		{
			Kind:    KindPolicyBypass,
			Label:   "INJECTION",
			Pattern: `(?i)\bbypass\b[^.!?\n]{0,30}\bpolic(?:y|ies)\b`,
		},
		{
			Kind:    KindRuleOverride,
			Label:   "INJECTION",
			Pattern: `(?i)\b(?:override|ignore)\b[^.!?\n]{0,30}\brules?\b`,
		},
		{
			Kind:    KindContextReset,
			Label:   "INJECTION",
			Pattern: `(?i)\bignore\s+all\s+context\b`,
		},
		{
			Kind:    KindSecrecyProbe,
			Label:   "INJECTION",
			Pattern: `(?i)\b(?:confidential|classified|secrets?|credentials?|passwords?|api\s+keys?)\b`,
		},
		{
			Kind:    KindScriptTag,
			Label:   "INJECTION",
			Pattern: `(?i)<\s*script\b|javascript:`,
		},
		{
			Kind:    KindSQLMutation,
			Label:   "INJECTION",
			Pattern: `(?i)\b(?:drop\s+table|delete\s+from|insert\s+into)\b`,
		},
		{
			Kind:    KindEventHandler,
			Label:   "INJECTION",
			Pattern: `(?i)\bon(?:error|click|load)\s*=`,
		},
	}
}

// PII returns the compiled built-in PII catalogue. The built-in specs are
// covered by tests; compilation cannot fail at runtime.
func PII() *Catalog {
	c, err := NewCatalog(PIISpecs())
	if err != nil {
		panic(err)
	}
	return c
}

// Injection returns the compiled built-in injection-phrase catalogue.
func Injection() *Catalog {
	c, err := NewCatalog(InjectionSpecs())
	if err != nil {
		panic(err)
	}
	return c
}

// OverrideIntentKinds is the phrase family expressing intent to override
// or escape instructions, used by retrieval query screening.
var OverrideIntentKinds = []Kind{
	KindIgnoreInstruction,
	KindDisregardAll,
	KindSafetyBypass,
	KindPolicyBypass,
	KindRuleOverride,
	KindContextReset,
}

// SecrecyKinds is the phrase family probing for confidential material,
// used by retrieval query screening.
var SecrecyKinds = []Kind{
	KindSecrecyProbe,
	KindSystemPromptExtraction,
	KindExfiltration,
}
