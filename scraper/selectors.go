package scraper

// CSS selectors and JS snippets used across the scraper.
// Centralising them makes future updates trivial.
const (
	// Search results feed
	FeedSelector = `div[role="feed"]`
	CardSelector = `div.Nv2PK`

	// Detail page
	DetailReadySelector = `h1.DUwDvf, h1.fontHeadlineLarge`
)

// consentScript dismisses the cookie-consent interstitial when present.
const consentScript = `(function () {
	const selectors = [
		'button[aria-label="Accept all"]',
		'button[aria-label="I agree"]',
		'button[aria-label="Accept all cookies"]',
		'button.VfPpkd-LgbsSe-OWXEXe-k8QpJ'
	];
	for (const sel of selectors) {
		const btn = document.querySelector(sel);
		if (btn) {
			btn.click();
			return true;
		}
	}
	return false;
})();`

// cardsScript lifts the raw payload of every currently-rendered result card.
// The place URL doubles as the item identity: cards re-render and reorder
// while the feed grows, but the href stays stable.
const cardsScript = `(function () {
	const cards = Array.from(document.querySelectorAll('div[role="feed"] div.Nv2PK'));
	const pickText = (root, selector) => {
		const node = root.querySelector(selector);
		return node ? node.textContent.trim() : '';
	};
	return JSON.stringify(cards.map(card => {
		const link = card.querySelector('a[href*="/maps/place/"]');
		const infoLines = card.querySelectorAll('.W4Efsd span');
		const addressNode = card.querySelector('.W4Efsd span:last-child');
		return {
			url: link ? link.href : '',
			name: pickText(card, '.qBF1Pd'),
			category: infoLines.length ? infoLines[0].textContent.trim() : '',
			address: addressNode ? addressNode.textContent.trim() : '',
			rating: pickText(card, '.MW4etd'),
			reviews: pickText(card, '.UY7F9'),
			price: pickText(card, 'span[aria-label*="Price"]'),
			text: card.innerText || ''
		};
	}).filter(c => c.url));
})();`

// endScript probes for the marker Maps renders once the feed is exhausted.
const endScript = `(function () {
	const marker = document.querySelector('span.HlvSq, p.fontBodyMedium span.HlvSq');
	if (marker) return true;
	const feed = document.querySelector('div[role="feed"]');
	return !!(feed && /reached the end of the list/i.test(feed.innerText));
})();`

// scrollScript advances the feed panel by one viewport and returns the new
// scroll height so the caller can tell whether anything was appended.
const scrollScript = `(function () {
	const feed = document.querySelector('div[role="feed"]');
	if (!feed) {
		window.scrollBy(0, 1000);
		return -1;
	}
	feed.scrollTop = feed.scrollHeight;
	return feed.scrollHeight;
})();`

// detailScript extracts contact fields from a place detail page.
const detailScript = `(function () {
	const pick = (selectors) => {
		for (const sel of selectors) {
			const node = document.querySelector(sel);
			if (node) {
				const v = node.href || node.textContent || '';
				if (v.trim()) return v.trim();
			}
		}
		return '';
	};
	const website = pick([
		'a[data-item-id="authority"]',
		'a[data-item-id="website"]',
		'a[aria-label^="Website"]'
	]);
	const phone = pick([
		'button[data-item-id^="phone:tel"]',
		'a[href^="tel:"]',
		'div[data-item-id^="phone"] span'
	]);
	const plusCode = pick([
		'button[data-item-id="oloc"]',
		'button[aria-label^="Plus code"]'
	]);
	const address = pick([
		'button[data-item-id="address"]',
		'[data-item-id="address"]'
	]);
	const closedBanner = document.querySelector('span.fCEvvc, [aria-label*="Permanently closed"]');
	return JSON.stringify({
		website: website,
		phone: phone,
		plusCode: plusCode,
		address: address,
		closed: !!closedBanner
	});
})();`
