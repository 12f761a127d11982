// Package slingshot provides the HTTP transport for Slingshot uploads.
//
// # Overview
//
// A Client is bound to one upload profile on a signing server. It performs
// the two network operations the upload orchestrator needs:
//
//   - RequestAuthorization: POST {base}/{profile}/request with the file
//     descriptor and caller metadata; the server answers {key, url}.
//   - Upload: PUT the raw file body to the signed url, reporting progress.
//
// Resolve additionally follows the retrieval contract, GET {base}/{profile}/{key},
// and returns the signed URL the server redirects to.
//
// # Usage Example
//
//	client, err := slingshot.NewClient("http://localhost:8080/api/slingshot", "avatar")
//	if err != nil {
//		log.Fatalf("init client: %v", err)
//	}
//
//	auth, err := client.RequestAuthorization(ctx, slingshot.FileDescriptor{
//		Name: "avatar.png", Type: "image/png", Size: int64(len(data)),
//	}, slingshot.Meta{"userId": 42})
//	if err != nil {
//		return err
//	}
//	if auth.Key == "" {
//		return errors.New("declined")
//	}
//	err = client.Upload(ctx, auth.URL, bytes.NewReader(data), int64(len(data)), "image/png",
//		func(pct int) { fmt.Printf("%d%%\n", pct) })
//
// # Error Handling
//
//   - ErrProfileRequired: NewClient was given an empty profile
//   - *APIError: the signing server answered non-2xx; Error() is the server's
//     {"error": ...} message when present (e.g. "File type not allowed")
//   - *UploadError: the storage endpoint answered >= 400; Error() is the
//     response body text
//   - ErrNotFound: Resolve got a 404
//   - Network and context errors are wrapped with what failed
//
// # Timeouts
//
// Authorization and resolve calls share an http.Client with a request timeout
// (10s by default, WithRequestTimeout to change it). Transfers use a separate
// client without a timeout so large files are bounded only by their context.
package slingshot
