package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"celebria/internal/live"
	"celebria/internal/rsvp"
)

// YouTubeStartSeconds 是背景视频开始播放的位置。
const YouTubeStartSeconds = 10

// runtimeConfig 把 live/rsvp 模型里的参数带进浏览器脚本，两边共用同一组常量。
type runtimeConfig struct {
	MinScale       float64  `json:"minScale"`
	TickMillis     int64    `json:"tickMillis"`
	Gestures       []string `json:"gestures"`
	StorageKey     string   `json:"storageKey"`
	SuccessMessage string   `json:"successMessage"`
	VideoStart     int      `json:"videoStart"`
}

func defaultRuntimeConfig() runtimeConfig {
	gestures := make([]string, 0, len(live.Interactions))
	for _, g := range live.Interactions {
		gestures = append(gestures, string(g))
	}
	return runtimeConfig{
		MinScale:       MinScale,
		TickMillis:     live.TickInterval.Milliseconds(),
		Gestures:       gestures,
		StorageKey:     rsvp.KeyPrefix,
		SuccessMessage: rsvp.SuccessMessage,
		VideoStart:     YouTubeStartSeconds,
	}
}

// RuntimeScript 在宾客浏览器中运行，延续 live 包建模的行为：
//   - .celebria-frame 按 data-logical-w/h 随容器尺寸重新缩放，只取最新一次测量
//   - 倒计时每个 tick 刷新一次，到点归零，pagehide 时停止
//   - 背景音频静音启动，首次手势后取消静音
//   - 确认对话框先写本地列表，再发一次请求，随后下载预生成的 .ics 并提示成功
var RuntimeScript = mustRuntimeScript(defaultRuntimeConfig())

func mustRuntimeScript(cfg runtimeConfig) string {
	s, err := buildRuntimeScript(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func buildRuntimeScript(cfg runtimeConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode runtime config: %w", err)
	}
	var b strings.Builder
	if err := runtimeTemplate.Execute(&b, string(raw)); err != nil {
		return "", fmt.Errorf("execute runtime template: %w", err)
	}
	return b.String(), nil
}

var runtimeTemplate = template.Must(template.New("runtime").Parse(runtimeSource))

const runtimeSource = `(function () {
  "use strict";
  var CONFIG = {{.}};

  function once(fn) {
    var fired = false;
    function handler() {
      if (fired) return;
      fired = true;
      CONFIG.gestures.forEach(function (g) { document.removeEventListener(g, handler, true); });
      fn();
    }
    CONFIG.gestures.forEach(function (g) { document.addEventListener(g, handler, true); });
  }

  var root = document.querySelector(".celebria-doc");
  if (root && window.ResizeObserver) {
    var bounded = root.dataset.mode === "public-scroll";
    var frames = Array.prototype.slice.call(root.querySelectorAll(".celebria-frame"));
    var pending = null;
    var apply = function () {
      var rect = pending;
      pending = null;
      var w = rect.width || window.innerWidth;
      var h = bounded ? (window.innerHeight || 0) : 0;
      frames.forEach(function (frame) {
        var lw = Number(frame.dataset.logicalW), lh = Number(frame.dataset.logicalH);
        var s = w / lw;
        if (h > 0) s = Math.min(s, h / lh);
        if (!(s >= CONFIG.minScale)) s = CONFIG.minScale;
        frame.style.width = lw * s + "px";
        frame.style.height = lh * s + "px";
        frame.dataset.scale = String(s);
        var page = frame.firstElementChild;
        if (page) page.style.transform = "scale(" + s + ")";
      });
    };
    new ResizeObserver(function (entries) {
      var first = pending === null;
      pending = entries[entries.length - 1].contentRect;
      if (first) window.requestAnimationFrame(apply);
    }).observe(root);
  }

  var countdowns = document.querySelectorAll("[data-countdown-target]");
  if (countdowns.length) {
    var pad = function (n) { return n < 10 ? "0" + n : String(n); };
    var tick = function () {
      Array.prototype.forEach.call(countdowns, function (el) {
        var target = Date.parse(el.dataset.countdownTarget);
        if (isNaN(target)) return;
        var left = Math.max(0, Math.floor((target - Date.now()) / 1000));
        var parts = [Math.floor(left / 86400), Math.floor(left % 86400 / 3600), Math.floor(left % 3600 / 60), left % 60];
        Array.prototype.forEach.call(el.querySelectorAll("[data-unit]"), function (u) {
          u.textContent = pad(parts[Number(u.dataset.unit)]);
        });
      });
    };
    tick();
    var timer = window.setInterval(tick, CONFIG.tickMillis);
    window.addEventListener("pagehide", function () { window.clearInterval(timer); }, { once: true });
  }

  var audio = document.querySelector(".celebria-audio audio");
  if (audio) {
    audio.muted = true;
    audio.play().catch(function () {});
    once(function () {
      audio.muted = false;
      audio.play().catch(function () {});
    });
  }

  var yt = document.getElementById("celebria-yt");
  if (yt && yt.dataset.videoId) {
    var id = yt.dataset.videoId;
    var init = function () {
      var player = new window.YT.Player(yt, {
        width: "0",
        height: "0",
        videoId: id,
        playerVars: { autoplay: 1, controls: 0, modestbranding: 1, loop: 1, playlist: id, start: CONFIG.videoStart },
        events: {
          onReady: function (e) {
            try { e.target.mute(); e.target.seekTo(CONFIG.videoStart, true); e.target.playVideo(); } catch (_) {}
          }
        }
      });
      once(function () {
        try { player.unMute(); player.playVideo(); } catch (_) {}
      });
    };
    if (window.YT && window.YT.Player) init(); else window.onYouTubeIframeAPIReady = init;
  }

  var dialog = document.getElementById("celebria-confirm");
  if (dialog) {
    var form = dialog.querySelector("form");
    var active = null;
    var close = function () {
      active = null;
      form.reset();
      dialog.close();
    };
    var decode = function (b64) {
      var bin = window.atob(b64);
      var bytes = new Uint8Array(bin.length);
      for (var i = 0; i < bin.length; i++) bytes[i] = bin.charCodeAt(i);
      return bytes;
    };
    var download = function (cal) {
      var blob = new Blob([decode(cal.data)], { type: cal.type });
      var url = URL.createObjectURL(blob);
      var a = document.createElement("a");
      a.href = url;
      a.download = cal.name;
      document.body.appendChild(a);
      a.click();
      a.remove();
      URL.revokeObjectURL(url);
    };
    Array.prototype.forEach.call(document.querySelectorAll(".el-confirm"), function (btn) {
      btn.addEventListener("click", function () {
        if (dialog.open) return;
        var d = btn.dataset;
        active = {
          label: d.confirmLabel,
          dateISO: d.confirmDate || "",
          endDateISO: d.confirmEnd || "",
          calendar: d.calendar ? { data: d.calendar, name: d.calendarName, type: d.calendarType } : null
        };
        form.reset();
        dialog.showModal();
      });
    });
    dialog.querySelector("[data-cancel]").addEventListener("click", close);
    form.addEventListener("submit", function (ev) {
      ev.preventDefault();
      var current = active;
      var name = form.elements.name.value.trim();
      var lastName = form.elements.lastName.value.trim();
      var key = CONFIG.storageKey + dialog.dataset.slug;
      try {
        var list = JSON.parse(window.localStorage.getItem(key) || "[]");
        list.push({ name: name, lastName: lastName, at: new Date().toISOString() });
        window.localStorage.setItem(key, JSON.stringify(list));
      } catch (_) {}
      var payload = { name: name, lastName: lastName, dateISO: current ? current.dateISO : "", endDateISO: current ? current.endDateISO : "" };
      try {
        fetch(dialog.dataset.action, { method: "POST", headers: { "Content-Type": "application/json" }, body: JSON.stringify(payload) })
          .catch(function () {});
      } catch (_) {}
      if (current && current.calendar) {
        try { download(current.calendar); } catch (_) {}
      }
      close();
      window.alert(CONFIG.successMessage);
    });
  }
})();
`
