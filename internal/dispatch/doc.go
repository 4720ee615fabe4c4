// Package dispatch delivers queue items to the advisory backend.
//
// Each queue kind decodes into a concrete Request variant. The Client posts
// the variant to the endpoint for its kind and normalizes the outcome into
// the services error markers the sync engine records on the item.
package dispatch
