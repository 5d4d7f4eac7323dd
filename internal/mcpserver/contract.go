package mcpserver

// ReferenceFormatContract describes the two forms media takes in a document,
// for LLM consumers that read or write editing buffers.
const ReferenceFormatContract = `# Media Reference Format

Documents exist in two forms.

- **Canonical** documents (what ` + "`" + `save_note` + "`" + ` writes to disk) hold every media
  payload inline as a ` + "`" + `data:` + "`" + ` URL.
- **Editing buffers** (what ` + "`" + `open_note` + "`" + ` returns) hold short references instead.
  Saving a buffer expands them back.

## Collapsed references

` + "```" + `html
<image data-id="KEY" data-display="...HINT">label</image>   <!-- picture -->
<draw data-id="KEY" data-display="...HINT"></draw>          <!-- drawing -->
<file data-id="KEY" data-display="...HINT">name.pdf</file>  <!-- any other file -->
` + "```" + `

- ` + "`" + `KEY` + "`" + ` identifies the stored payload. Never invent keys; get them from
  ` + "`" + `attach_media` + "`" + ` or ` + "`" + `collapse_document` + "`" + `.
- ` + "`" + `HINT` + "`" + ` is the last five characters of the encoded data. It is cosmetic.
- Copy references verbatim. A reference whose key is unknown stays as is on save.

## Expanded shapes

| Kind | Canonical text |
|---|---|
| image, drawing | ` + "`" + `![label](data:image/...;base64,...)` + "`" + ` |
| audio | ` + "`" + `<audio controls><source src="data:..." type="..."></audio>` + "`" + ` |
| video | ` + "`" + `<video controls ...><source src="data:..." type="..."></video>` + "`" + ` |
| pdf | ` + "`" + `<embed src="data:application/pdf;..." type="application/pdf" ... />` + "`" + ` |
| html, text | ` + "`" + `<iframe src="data:text/...;..." ...></iframe>` + "`" + ` |
| other | ` + "`" + `<a href="data:..." download="name" ...>...</a>` + "`" + ` |

## Cursor positions

Tools that take or return a cursor count Unicode code points from the start of
the text, not bytes.

## Workflow

1. ` + "`" + `open_note` + "`" + ` to get a buffer and its checksum.
2. Edit the buffer; insert new media with the tag returned by ` + "`" + `attach_media` + "`" + `.
3. ` + "`" + `save_note` + "`" + ` with the buffer and the checksum as ` + "`" + `if_match` + "`" + `.
`
