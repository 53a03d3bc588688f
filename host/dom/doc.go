// Package dom is an in-memory host backed by a goquery HTML tree. It serves
// server-side previews and tests: the document records script injection,
// the page hands out one slot per visible target and the dialog implements
// the modal keyboard contract without a browser.
//
// The markup mirrors the list screen:
//
//	main.replies-grid
//	  article.reply-card
//	    div.reply-embed                       (frame: measured and flagged)
//	      div.tweet-embed[data-tweet-id]      (slot)
//	div.modal-backdrop
//	  div.modal-dialog
//	    button.modal-close
//	    div.modal-body > div.tweet-embed-modal
//
// All tree access is serialised by the document mutex.
package dom
