package trust

import "fmt"

// Claim values shared by every claim.
const (
	// VerifierMalfunction means the verifier failed while appraising this
	// aspect.
	VerifierMalfunction int8 = -1
	// NoClaim means the evidence was insufficient to draw a conclusion.
	NoClaim int8 = 0
	// UnexpectedEvidence means the evidence contained elements the
	// verifier could not parse.
	UnexpectedEvidence int8 = 1
	// CryptoValidationFailed means cryptographic validation of the
	// evidence failed.
	CryptoValidationFailed int8 = 99
)

// Instance identity claim values.
const (
	TrustworthyInstance   int8 = 2
	UntrustworthyInstance int8 = 96
	UnrecognizedInstance  int8 = 97
)

// Configuration claim values.
const (
	ApprovedConfig      int8 = 2
	NoConfigVulns       int8 = 3
	UnsafeConfig        int8 = 32
	UnavailConfigElems  int8 = 36
	UnsupportableConfig int8 = 96
)

// Executables claim values.
const (
	ApprovedRuntime        int8 = 2
	ApprovedBoot           int8 = 3
	UnsafeRuntime          int8 = 32
	UnrecognizedRuntime    int8 = 33
	ContraindicatedRuntime int8 = 96
)

// File system claim values.
const (
	ApprovedFiles        int8 = 2
	UnrecognizedFiles    int8 = 32
	ContraindicatedFiles int8 = 96
)

// Hardware claim values.
const (
	GenuineHardware         int8 = 2
	UnsafeHardware          int8 = 32
	ContraindicatedHardware int8 = 96
	UnrecognizedHardware    int8 = 97
)

// Runtime opaque claim values.
const (
	EncryptedMemoryRuntime int8 = 2
	IsolatedMemoryRuntime  int8 = 32
	VisibleMemoryRuntime   int8 = 96
)

// Storage opaque claim values.
const (
	HwKeysEncryptedSecrets int8 = 2
	SwKeysEncryptedSecrets int8 = 32
	UnencryptedSecrets     int8 = 96
)

// Sourced data claim values.
const (
	TrustedSources         int8 = 2
	UntrustedSources       int8 = 32
	ContraindicatedSources int8 = 96
)

// ValueDesc describes one defined claim value.
type ValueDesc struct {
	// Tag is the short name given to the value.
	Tag string
	// Short is a one-line description, suitable for error messages.
	Short string
	// Long is a full explanation of what the value represents.
	Long string
}

type claimDesc struct {
	key    int64
	name   string
	values map[int8]ValueDesc
}

var commonClaimValues = map[int8]ValueDesc{
	VerifierMalfunction: {
		Tag:   "verifier_malfunction",
		Short: "verifier malfunction",
		Long:  "A verifier malfunction occurred during evidence appraisal.",
	},
	NoClaim: {
		Tag:   "no_claim",
		Short: "no claim is being made",
		Long:  "The evidence received is insufficient to make a conclusion.",
	},
	UnexpectedEvidence: {
		Tag:   "unexpected_evidence",
		Short: "unexpected evidence",
		Long:  "The evidence received contains unexpected elements which the verifier is unable to parse.",
	},
	CryptoValidationFailed: {
		Tag:   "crypto_failed",
		Short: "cryptographic validation failed",
		Long:  "Cryptographic validation of the Evidence has failed.",
	},
}

var instanceIdentityDesc = &claimDesc{
	key:  0,
	name: "instance-identity",
	values: map[int8]ValueDesc{
		TrustworthyInstance: {
			Tag:   "recognized_instance",
			Short: "trustworthy instance",
			Long:  "The Attesting Environment is recognized, and the associated instance of the Attester is not known to be compromised.",
		},
		UntrustworthyInstance: {
			Tag:   "untrustworthy_instance",
			Short: "recognized but not trustworthy",
			Long:  "The Attesting Environment is recognized, but its unique private key indicates a device which is not trustworthy.",
		},
		UnrecognizedInstance: {
			Tag:   "unrecognized_instance",
			Short: "not recognized",
			Long:  "The Attesting Environment is not recognized; however the verifier believes it should be.",
		},
	},
}

var configurationDesc = &claimDesc{
	key:  1,
	name: "configuration",
	values: map[int8]ValueDesc{
		ApprovedConfig: {
			Tag:   "approved_config",
			Short: "all recognized and approved",
			Long:  "The configuration is a known and approved config.",
		},
		NoConfigVulns: {
			Tag:   "safe_config",
			Short: "no known vulnerabilities",
			Long:  "The configuration includes or exposes no known vulnerabilities",
		},
		UnsafeConfig: {
			Tag:   "unsafe_config",
			Short: "known vulnerabilities",
			Long:  "The configuration includes or exposes known vulnerabilities.",
		},
		UnavailConfigElems: {
			Tag:   "unavailable_config",
			Short: "config elements unavailable",
			Long:  "Elements of the configuration relevant to security are unavailable to the Verifier.",
		},
		UnsupportableConfig: {
			Tag:   "unsupportable_config",
			Short: "unacceptable security vulnerabilities",
			Long:  "The configuration is unsupportable as it exposes unacceptable security vulnerabilities",
		},
	},
}

var executablesDesc = &claimDesc{
	key:  2,
	name: "executables",
	values: map[int8]ValueDesc{
		ApprovedRuntime: {
			Tag:   "approved_rt",
			Short: "recognized and approved boot- and run-time",
			Long:  "Only a recognized genuine set of approved executables, scripts, files, and/or objects have been loaded during and after the boot process.",
		},
		ApprovedBoot: {
			Tag:   "approved_boot",
			Short: "recognized and approved boot-time",
			Long:  "Only a recognized genuine set of approved executables have been loaded during the boot process.",
		},
		UnsafeRuntime: {
			Tag:   "unsafe_rt",
			Short: "recognized but known bugs or vulnerabilities",
			Long:  "Only a recognized genuine set of executables, scripts, files, and/or objects have been loaded. However the Verifier cannot vouch for a subset of these due to known bugs or other known vulnerabilities.",
		},
		UnrecognizedRuntime: {
			Tag:   "unrecognized_rt",
			Short: "unrecognized run-time",
			Long:  "Runtime memory includes executables, scripts, files, and/or objects which are not recognized.",
		},
		ContraindicatedRuntime: {
			Tag:   "contraindicated_rt",
			Short: "contraindicated run-time",
			Long:  "Runtime memory includes executables, scripts, files, and/or object which are contraindicated.",
		},
	},
}

var fileSystemDesc = &claimDesc{
	key:  3,
	name: "file-system",
	values: map[int8]ValueDesc{
		ApprovedFiles: {
			Tag:   "approved_fs",
			Short: "all recognized and approved",
			Long:  "Only a recognized set of approved files are found.",
		},
		UnrecognizedFiles: {
			Tag:   "unrecognized_fs",
			Short: "unrecognized item(s) found",
			Long:  "The file system includes unrecognized executables, scripts, or files.",
		},
		ContraindicatedFiles: {
			Tag:   "contraindicated_fs",
			Short: "contraindicated item(s) found",
			Long:  "The file system includes contraindicated executables, scripts, or files.",
		},
	},
}

var hardwareDesc = &claimDesc{
	key:  4,
	name: "hardware",
	values: map[int8]ValueDesc{
		GenuineHardware: {
			Tag:   "genuine_hw",
			Short: "genuine",
			Long:  "An Attester has passed its hardware and/or firmware verifications needed to demonstrate that these are genuine/supported.",
		},
		UnsafeHardware: {
			Tag:   "unsafe_hw",
			Short: "genuine but known bugs or vulnerabilities",
			Long:  "An Attester contains only genuine/supported hardware and/or firmware, but there are known security vulnerabilities.",
		},
		ContraindicatedHardware: {
			Tag:   "contraindicated_hw",
			Short: "genuine but contraindicated",
			Long:  "Attester hardware and/or firmware is recognized, but its trustworthiness is contraindicated.",
		},
		UnrecognizedHardware: {
			Tag:   "unrecognized_hw",
			Short: "unrecognized",
			Long:  "A Verifier does not recognize an Attester's hardware or firmware, but it should be recognized.",
		},
	},
}

var runtimeOpaqueDesc = &claimDesc{
	key:  5,
	name: "runtime-opaque",
	values: map[int8]ValueDesc{
		EncryptedMemoryRuntime: {
			Tag:   "encrypted_rt",
			Short: "memory encryption",
			Long:  "the Attester's executing Target Environment and Attesting Environments are encrypted and within Trusted Execution Environment(s) opaque to the operating system, virtual machine manager, and peer applications.",
		},
		IsolatedMemoryRuntime: {
			Tag:   "isolated_rt",
			Short: "memory isolation",
			Long:  "the Attester's executing Target Environment and Attesting Environments are inaccessible from any other parallel application or Guest VM running on the Attester's physical device.",
		},
		VisibleMemoryRuntime: {
			Tag:   "visible_rt",
			Short: "visible",
			Long:  "The Verifier has concluded that in memory objects are unacceptably visible within the physical host that supports the Attester.",
		},
	},
}

var storageOpaqueDesc = &claimDesc{
	key:  6,
	name: "storage-opaque",
	values: map[int8]ValueDesc{
		HwKeysEncryptedSecrets: {
			Tag:   "hw_encrypted_secrets",
			Short: "encrypted secrets with HW-backed keys",
			Long:  "the Attester encrypts all secrets in persistent storage via using keys which are never visible outside an HSM or the Trusted Execution Environment hardware.",
		},
		SwKeysEncryptedSecrets: {
			Tag:   "sw_encrypted_secrets",
			Short: "encrypted secrets with non HW-backed keys",
			Long:  "the Attester encrypts all persistently stored secrets, but without using hardware backed keys.",
		},
		UnencryptedSecrets: {
			Tag:   "unencrypted_secrets",
			Short: "unencrypted secrets",
			Long:  "There are persistent secrets which are stored unencrypted in an Attester.",
		},
	},
}

var sourcedDataDesc = &claimDesc{
	key:  7,
	name: "sourced-data",
	values: map[int8]ValueDesc{
		TrustedSources: {
			Tag:   "trusted_sources",
			Short: "from attesters in the affirming tier",
			Long:  `All essential Attester source data objects have been provided by other Attester(s) whose most recent appraisal(s) had both no Trustworthiness Claims of "0" where the current Trustworthiness Claim is "Affirmed", as well as no "Warning" or "Contraindicated" Trustworthiness Claims.`,
		},
		UntrustedSources: {
			Tag:   "untrusted_sources",
			Short: "from unattested sources or attesters in the warning tier",
			Long:  `Attester source data objects come from unattested sources, or attested sources with "Warning" type Trustworthiness Claims`,
		},
		ContraindicatedSources: {
			Tag:   "contraindicated_sources",
			Short: "from attesters in the contraindicated tier",
			Long:  "Attester source data objects come from contraindicated sources.",
		},
	},
}

// Claim is a single trustworthiness claim: an optional signed byte value
// graded against the claim's own catalog of defined values.
type Claim struct {
	value int8
	set   bool
	desc  *claimDesc
}

// IsSet reports whether the claim value has been set.
func (c Claim) IsSet() bool {
	return c.set
}

// Set assigns the claim value.
func (c *Claim) Set(v int8) {
	c.value = v
	c.set = true
}

// Unset clears the claim value.
func (c *Claim) Unset() {
	c.value = 0
	c.set = false
}

// Value returns the claim value. An unset claim reports 0, meaning no claim
// is being made.
func (c Claim) Value() int8 {
	if !c.set {
		return 0
	}
	return c.value
}

// Tag returns the name under which the claim is written in the human
// readable form.
func (c Claim) Tag() string {
	if c.desc == nil {
		return ""
	}
	return c.desc.name
}

// Key returns the integer key under which the claim is written in the
// binary form.
func (c Claim) Key() int64 {
	if c.desc == nil {
		return 0
	}
	return c.desc.key
}

// Tier derives the trustworthiness tier from the claim value. The canonical
// band {-1, 0, 1} always classifies as none, even though it sits inside the
// affirming range; the remaining bands use exclusive bounds, so -32 grades
// warning and -96 grades contraindicated, same as their positive twins.
func (c Claim) Tier() Tier {
	v := c.Value()
	switch {
	case v >= -1 && v <= 1:
		return TierNone
	case v > -32 && v < 32:
		return TierAffirming
	case v > -96 && v < 96:
		return TierWarning
	default:
		return TierContraindicated
	}
}

func (c Claim) valueDesc() (ValueDesc, bool) {
	v := c.Value()
	if c.desc != nil {
		if d, ok := c.desc.values[v]; ok {
			return d, true
		}
	}
	if d, ok := commonClaimValues[v]; ok {
		return d, true
	}
	return ValueDesc{}, false
}

// ValueName returns the standard name of the claim's current value, or a
// synthetic "TrustClaim(v)" name for values with no defined description.
func (c Claim) ValueName() string {
	if d, ok := c.valueDesc(); ok {
		return d.Tag
	}
	return fmt.Sprintf("TrustClaim(%d)", c.Value())
}

// ValueShortDesc returns the one-line description of the claim's current
// value, or an empty string for values with no defined description.
func (c Claim) ValueShortDesc() string {
	d, _ := c.valueDesc()
	return d.Short
}

// ValueLongDesc returns the full description of the claim's current value,
// or an empty string for values with no defined description.
func (c Claim) ValueLongDesc() string {
	d, _ := c.valueDesc()
	return d.Long
}

// Equal reports whether two claims carry the same value. Descriptors are
// ignored, as claims of the same kind are compared against each other.
func (c Claim) Equal(other Claim) bool {
	return c.Value() == other.Value()
}
