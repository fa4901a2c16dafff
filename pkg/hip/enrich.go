package hip

import (
	"errors"

	"github.com/beevik/etree"
	"github.com/haasonsaas/hipreport/pkg/posture"
)

var ErrNoHostInfoOS = errors.New("HIP report has no categories/entry[@name='host-info']/os element")

const hostInfoOSPath = "./categories/entry[@name='host-info']/os"

// Enrich inserts the openconnect supplied fields directly after the root's
// first child element and replaces the host-info OS text. The document is
// left untouched when the host-info OS element is missing.
func Enrich(doc *etree.Document, f *posture.Fields, osDescription string) error {
	root := doc.Root()
	if root == nil {
		return ErrMissingDocument
	}
	osElem := root.FindElement(hostInfoOSPath)
	if osElem == nil {
		return ErrNoHostInfoOS
	}

	pos := len(root.Child)
	if children := root.ChildElements(); len(children) > 0 {
		pos = children[0].Index() + 1
	}
	for _, elem := range reportElements(f) {
		root.InsertChildAt(pos, elem)
		pos++
	}

	osElem.SetText(osDescription)
	return nil
}

func reportElements(f *posture.Fields) []*etree.Element {
	elems := []*etree.Element{
		textElement("md5-sum", f.MD5),
		textElement("user-name", f.User),
		textElement("domain", f.Domain),
		textElement("host-name", f.Computer),
		textElement("ip-address", f.IPv4),
	}
	if f.HasIPv6() {
		elems = append(elems, textElement("ipv6-address", f.IPv6))
	}
	return elems
}

func textElement(tag, text string) *etree.Element {
	e := etree.NewElement(tag)
	e.SetText(text)
	return e
}
