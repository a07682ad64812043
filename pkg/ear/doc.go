// Package ear implements EAT attestation results: the tokens a verifier
// produces after appraising attestation evidence, for consumption by
// relying parties.
//
// A token is created, filled in and signed by the verifier:
//
//	token := ear.New()
//	token.Profile = "tag:example.com,2025:my-profile"
//	token.IssuedAt = time.Now().Unix()
//	token.VerifierID = ear.VerifierID{
//		Build:     "rrtrap-v1.0.0",
//		Developer: "Acme Inc.",
//	}
//
//	appraisal := ear.NewAppraisal()
//	appraisal.TrustVector.Executables.Set(trust.ApprovedRuntime)
//	appraisal.UpdateStatusFromTrustVector()
//	token.Submods["road-runner-trap"] = appraisal
//
//	signed, err := token.SignJWT(ear.AlgorithmES256, pemKey)
//
// and verified and inspected by the relying party:
//
//	token, err := ear.VerifyJWT(signed, ear.AlgorithmES256, jwkKey)
//	if err != nil {
//		...
//	}
//	status := token.Submods["road-runner-trap"].Status
//
// Tokens can equally be carried as COSE_Sign1 messages via SignCOSE and
// VerifyCOSE, and encoded without a signature through the json and cbor
// marshalers. Both wire forms carry the same claims.
//
// Beyond the fixed claims, a token and each of its appraisals can carry
// extension fields. A Profile declares the extensions a deployment uses,
// and registering it with RegisterProfile makes the declarations available
// to NewWithProfile, NewAppraisalWithProfile and the decoders, which bind
// them automatically to tokens naming the profile.
package ear
