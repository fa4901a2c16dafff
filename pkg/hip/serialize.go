package hip

import "github.com/beevik/etree"

// Serialize writes the report root as UTF-8 text without an XML declaration,
// which is the form openconnect posts to the gateway.
func Serialize(doc *etree.Document) (string, error) {
	root := doc.Root()
	if root == nil {
		return "", ErrMissingDocument
	}
	out := etree.NewDocument()
	out.WriteSettings = doc.WriteSettings
	out.SetRoot(root.Copy())
	return out.WriteToString()
}
