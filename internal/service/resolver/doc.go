// Package resolver finds the newest published release tag and derives the
// artifact download URL from it.
//
// The default TagsPage source scans the HTML tags listing and takes the
// first release link in document order; the listing is newest first, so no
// version comparison is performed. GitHubAPI applies the same first-match
// policy to the REST tag list.
package resolver
