// Package signedurl issues GOOG4-RSA-SHA256 (V4) signed URLs without holding
// a private key.
//
// The canonical request and string-to-sign are built locally; the signature
// itself comes from a RemoteSigner such as the IAM Credentials signBlob API
// (package iamsigner) or an AWS KMS key (package kmssigner).
//
// # Basic Usage
//
//	signer, err := iamsigner.New(ctx)
//	assembler, err := signedurl.New(signer)
//	signed, err := assembler.SignURL(ctx, signedurl.SigningRequest{
//	    Method:          http.MethodPut,
//	    Bucket:          "my-bucket",
//	    ObjectKey:       "uploads/photo.jpg",
//	    ContentType:     "image/jpeg",
//	    LifetimeMinutes: 15,
//	    SigningIdentity: "signer@project.iam.gserviceaccount.com",
//	})
//	// signed.URL is ready to hand to a client for a PUT upload
//
// # URL format
//
//	https://storage.googleapis.com/<bucket>/<key>
//	    ?X-Goog-Algorithm=GOOG4-RSA-SHA256
//	    &X-Goog-Credential=<identity>%2F<date>%2Fauto%2Fstorage%2Fgoog4_request
//	    &X-Goog-Date=<yyyymmddThhmmssZ>
//	    &X-Goog-Expires=<seconds>
//	    &X-Goog-SignedHeaders=content-type%3Bhost
//	    &X-Goog-Signature=<lowercase hex>
//
// The uploader must send every signed header with the same value, in
// particular Content-Type; SignedURL.Headers lists them.
//
// # Errors
//
// Bad input yields a *ValidationError before any network call. Signer
// failures are returned unchanged and wrap ErrAuthorizationDenied,
// ErrInvalidIdentity or ErrTransientUnavailable.
package signedurl
