package mcpserver

// RequestContract describes the publish request envelope that LLM consumers
// should send to publish_record.
const RequestContract = `# Publish Request Contract

A publish request is a JSON object. It may be wrapped as ` + "`" + `{"data": {...}}` + "`" + `.

## Envelope

` + "```" + `json
{
  "mdjson": { "schema": {"name": "mdJson"}, "metadata": { ... } },
  "parentid": "5a1b2c3d4e5f60718293a4b5",
  "community_id": "",
  "projects_parent_id": "",
  "products_parent_id": "",
  "force_update": false,
  "relationships": [ { "metadata": { ... } } ],
  "access_token": ""
}
` + "```" + `

## Rules

1. **` + "`" + `mdjson` + "`" + ` is required.** It is the record to publish.
2. **Resource type** comes from ` + "`" + `metadata.resourceInfo.resourceType[].type` + "`" + `:
   the first of ` + "`" + `project` + "`" + ` or ` + "`" + `product` + "`" + `; anything else publishes as a product.
3. **Identity.** The record is matched to an existing item through managed
   identifiers in its citation: catalog ids (namespace ` + "`" + `gov.sciencebase.catalog` + "`" + `),
   the copy-tracking namespace ` + "`" + `sciencebase-production-id` + "`" + `, and any namespace
   starting with ` + "`" + `lcc:` + "`" + ` or containing ` + "`" + `uuid` + "`" + `.
4. **Placement.** ` + "`" + `parentid` + "`" + ` must be a 24 character hex catalog id. Without
   it a product goes under the project its ` + "`" + `parentProject` + "`" + ` association names,
   and anything unplaced goes into the orphan folder for its type.
5. **Unchanged records** (same attached mdJSON) are skipped unless
   ` + "`" + `force_update` + "`" + ` is true.
6. **Relationships** are published as products under the primary record and
   linked to it with ` + "`" + `productOf` + "`" + `.
7. **Associations** (` + "`" + `metadata.associatedResource[]` + "`" + `) of type ` + "`" + `parentProject` + "`" + `,
   ` + "`" + `subProject` + "`" + `, ` + "`" + `product` + "`" + `, ` + "`" + `alternate` + "`" + ` and ` + "`" + `crossReference` + "`" + ` become
   catalog links when the counterpart exists in the community.

## Result

A list with one entry per record: ` + "`" + `state` + "`" + ` (created, updated, unchanged or
error), ` + "`" + `id` + "`" + `, ` + "`" + `title` + "`" + `, ` + "`" + `messages` + "`" + `, ` + "`" + `warnings` + "`" + ` (failed links) and
` + "`" + `errors` + "`" + `.
`
