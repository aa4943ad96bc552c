// Package resolver resolves a video page URL into direct media metadata via
// the metadata backend.
//
// The request is a JSON POST:
//
//	{"url": "<page url>", "user_cookies_json": {"sessionid": "..."}}
//
// A 200 reply carries the metadata. Any other status carries
// {"error": "...", "errorCode": "..."} and is returned as a
// *media.BackendError, which classifies into the media sentinel errors.
package resolver
