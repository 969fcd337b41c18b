package preset

// InstrumentedLoaderShim is served verbatim at the preset's configured
// require-path. It wraps RequireJS's own `load` hook so every module
// fetch is reported back to this process as a ModuleData query-string
// parameter on a zero-byte tracking request, feeding the request log
// (§4.E) without the host page needing any changes.
const InstrumentedLoaderShim = `
(function (global) {
  var originalLoad = global.require && global.require.load;
  if (typeof originalLoad !== "function") {
    return;
  }

  function track(id, url) {
    var referrer = global.location ? global.location.pathname : "";
    var payload = JSON.stringify({ url: url, id: id, referrer: referrer });
    var beacon = new Image();
    beacon.src = "/__bs/track?bs_track=" + encodeURIComponent(payload);
  }

  global.require.load = function (context, moduleId, url) {
    track(moduleId, url);
    return originalLoad.call(this, context, moduleId, url);
  };
})(this);
`
